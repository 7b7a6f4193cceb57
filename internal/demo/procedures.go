package demo

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/action"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

// Procedure names.
const (
	ResonatorSpectroscopy = "resonator_spectroscopy"
	QubitSpectroscopy     = "qubit_spectroscopy"
	Rabi                  = "rabi"
	Ramsey                = "ramsey"
	Echo                  = "echo"
	FlagForReview         = "flag_for_review"
)

const keyFits = "fits"

// procedure describes one simulated measurement.
type procedure struct {
	name        string
	description string
	quantity    string
	base        float64
	spread      float64
	fields      []params.Field
	timeout     time.Duration
}

var procedures = []procedure{
	{
		name:        ResonatorSpectroscopy,
		description: "Sweep the readout tone and fit the resonator dip",
		quantity:    "resonator_ghz",
		base:        7.2,
		spread:      0.4,
		fields: []params.Field{
			{Name: "span_mhz", Type: params.TypeFloat, Default: 40.0, Description: "Sweep span around the expected resonance"},
			{Name: "points", Type: params.TypeInt, Default: 101},
		},
	},
	{
		name:        QubitSpectroscopy,
		description: "Two-tone spectroscopy of the qubit transition",
		quantity:    "qubit_ghz",
		base:        5.1,
		spread:      0.6,
		fields: []params.Field{
			{Name: "span_mhz", Type: params.TypeFloat, Default: 200.0},
			{Name: "drive_power_dbm", Type: params.TypeFloat, Default: -30.0},
		},
	},
	{
		name:        Rabi,
		description: "Amplitude Rabi to find the pi-pulse amplitude",
		quantity:    "pi_amplitude",
		base:        0.5,
		spread:      0.2,
		fields: []params.Field{
			{Name: "pulse_length", Type: params.TypeDuration, Default: "40ns"},
		},
		timeout: 30 * time.Second,
	},
	{
		name:        Ramsey,
		description: "Ramsey fringes for detuning and T2*",
		quantity:    "t2_star_us",
		base:        40,
		spread:      30,
		fields: []params.Field{
			{Name: "detuning_mhz", Type: params.TypeFloat, Default: 1.0},
		},
	},
	{
		name:        Echo,
		description: "Hahn echo for T2",
		quantity:    "t2_echo_us",
		base:        70,
		spread:      40,
	},
}

// commonFields are accepted by every procedure.
var commonFields = []params.Field{
	{Name: "update", Type: params.TypeBool, Default: true, Description: "Write fitted values to the device"},
}

// calibrationNode is a procedure node that publishes its parameter schema.
type calibrationNode struct {
	calibgraph.Node
	schema params.Schema
}

// Schema implements params.Declarer.
func (n *calibrationNode) Schema() params.Schema { return n.schema }

// Parameters forwards to the wrapped node.
func (n *calibrationNode) Parameters() params.Values {
	if holder, ok := n.Node.(calibgraph.ParameterHolder); ok {
		return holder.Parameters()
	}
	return params.Values{}
}

// newProcedureNode builds the acquire, fit, update pipeline of p.
func newProcedureNode(dev *Device, pipelines *action.Registry, p procedure) (calibgraph.Node, uuid.UUID, error) {
	pipeline := action.New(p.name)

	pipeline.MustStep("acquire", func(ctx calibgraph.Context, ns action.Namespace) error {
		for _, q := range ns.Targets() {
			ok, err := dev.Measure(ctx, p.name, q)
			if err != nil {
				return err
			}
			if !ok {
				ctx.Logger().Info("no signal", slog.String("qubit", q))
				ns.Fail(q)
			}
		}
		return nil
	})

	pipeline.MustStep("fit", func(_ calibgraph.Context, ns action.Namespace) error {
		outcomes := ns.Outcomes()
		fits := make(map[string]float64)
		for _, q := range ns.Targets() {
			if outcomes[q] == calibgraph.OutcomeFailed {
				continue
			}
			fits[q] = fitValue(p.base, p.spread, q)
		}
		ns[keyFits] = fits
		return nil
	})

	pipeline.MustStep("update", func(ctx calibgraph.Context, ns action.Namespace) error {
		fits, _ := ns[keyFits].(map[string]float64)
		for q, v := range fits {
			dev.Update(q, p.quantity, v)
			ctx.Logger().Debug("calibration updated",
				slog.String("qubit", q),
				slog.String("quantity", p.quantity),
				slog.Float64("value", v))
		}
		return nil
	}, action.SkipIf(action.ParameterFalse("update")))

	if err := pipelines.Add(pipeline); err != nil {
		return nil, uuid.Nil, err
	}

	schema := params.Schema{Fields: append(append([]params.Field{}, p.fields...), commonFields...)}
	var node calibgraph.Node = action.NewNode(p.name, pipeline,
		calibgraph.WithDescription(p.description),
		calibgraph.WithParameters(schema.Defaults()))
	if p.timeout > 0 {
		node = calibgraph.WithTimeout(node, p.timeout)
	}
	return &calibrationNode{Node: node, schema: schema}, pipeline.ID(), nil
}

// newFlagNode parks targets for manual review. Every target it receives is
// reported failed so that the review path never counts as calibrated.
func newFlagNode(dev *Device) calibgraph.Node {
	return calibgraph.NewNode(FlagForReview, func(ctx calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
		for _, q := range targets {
			dev.Update(q, "needs_review", 1)
			ctx.Logger().Warn("qubit flagged for review", slog.String("qubit", q))
		}
		return calibgraph.AllFailed(targets), nil
	}, calibgraph.WithDescription("Mark qubits that could not be calibrated"))
}
