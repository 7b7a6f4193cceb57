/*
Package params holds the parameter model of calibration nodes and graphs.

# Values

Values wraps a map[string]any and provides typed accessors that fall back to a
default when a key is missing or has the wrong type:

	v := params.NewValues(map[string]any{
	    "frequency_span": 20e6,
	    "num_averages":   100,
	    "wait":           "250ms",
	})

	span := v.Float("frequency_span", 10e6)            // 2e7
	avg := v.Int("num_averages", 50)                    // 100
	wait := v.Duration("wait", time.Second)             // 250ms
	qubits := v.StringSlice("qubits", []string{"q0"})   // default

# Schema

A Schema declares the parameters a runnable accepts. Validate coerces raw
values (as decoded from YAML or JSON), fills in defaults and reports every
problem at once:

	schema := params.Schema{Fields: []params.Field{
	    {Name: "num_averages", Type: params.TypeInt, Default: 100},
	    {Name: "flux_point", Type: params.TypeString, Required: true},
	}}
	values, err := schema.Validate(raw)
	var verr *params.ValidationError
	if errors.As(err, &verr) {
	    // verr.Problems lists each rejected field
	}

# File Loading

FromFile, FromYAML and FromJSON decode raw values; they do not validate.
*/
package params
