// Package lib provides a Go SDK to run untrusted Lua programs in the luabox sandbox.
//
// This package allows applications to validate and execute programs without
// shelling out to the luabox CLI binary, and to inspect the recorded run history.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	out, err := client.Run(ctx, `print("hello")`, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Status, out.Output)
//
// # Outcomes
//
// A run always ends in one [Outcome]. Programs that can't be parsed, use
// something the [Policy] doesn't allow, cross a resource ceiling, run out of
// time or raise an error are reported through [Outcome].Status, they are not
// Go errors:
//
//	out, _ := client.Run(ctx, `while true do end`, nil)
//	if !out.Success() {
//	    fmt.Println(out.Status, out.ErrorDetail)
//	}
//
// # Policies
//
// A nil policy uses [DefaultPolicy]. Zero fields of a custom policy get the
// default values too:
//
//	client.Run(ctx, src, &lib.Policy{
//	    Timeout:            2 * time.Second,
//	    InstructionCeiling: 10_000,
//	    AllowedModules:     []string{"math"},
//	})
//
// # Tools
//
// Programs can't reach the host, except through the [Tool] implementations
// set in the policy. Each tool is exposed as a global function:
//
//	client.Run(ctx, `print(greet("world"))`, &lib.Policy{Tools: []lib.Tool{greetTool{}}})
//
// # History
//
// Every run is recorded (without its output) in a SQLite database,
// use [Config].DisableHistory to keep it in memory:
//
//	runs, _ := client.ListRuns(ctx, &lib.ListRunsOpts{Limit: 10})
//
// # Error Handling
//
// Errors can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: The run does not exist.
//   - [ErrNotValid]: Invalid input, like an invalid policy.
//
// # Testing
//
// Use [EngineFake] to test code that uses the SDK without running programs:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DataDir:        t.TempDir(),
//	    DisableHistory: true,
//	    Engine:         lib.EngineFake,
//	})
package lib
