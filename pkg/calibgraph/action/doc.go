// Package action composes a node procedure from an ordered list of named
// steps.
//
// Steps are registered up front and run by a single RunSteps call in
// declaration order. Each step reads and writes a shared Namespace. A step
// may declare a skip predicate that is evaluated just before it would run.
// The first step error aborts the pipeline with a *StepError.
//
//	p := action.New("rabi")
//	p.MustStep("sweep", sweepAmplitude)
//	p.MustStep("fit", fitRabi)
//	p.MustStep("update_state", updateState, action.SkipIf(action.ParameterFalse("commit")))
//
//	node := action.NewNode("rabi", p, calibgraph.WithParameters(values))
//
// Steps refer back to their pipeline by ID only. Use a Registry to resolve
// the ID when a step needs the pipeline itself.
package action
