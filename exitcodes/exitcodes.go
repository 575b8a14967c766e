// Package exitcodes defines the standard exit codes used by plugci.
package exitcodes

// Exit code constants used by plugci
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when the pipeline completes and all e2e tests pass
// * TestFailure (1): Used when the pipeline completes but e2e tests fail
// * RuntimeErr (2): Used for runtime errors such as missing preconditions,
//   merge conflicts or publish failures
const (
	Success     = 0 // Pipeline complete, tests pass
	TestFailure = 1 // Pipeline complete, test failures
	RuntimeErr  = 2 // Runtime errors
)
