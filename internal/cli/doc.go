// Package cli provides the small command framework behind cmd/parity.
//
// A [Command] has a name, an optional [pflag.FlagSet] factory, nested
// subcommands and a Run function. [Command.Execute] parses flags, routes to
// subcommands and prints help. Unknown commands and flags get a "did you
// mean" suggestion based on edit distance.
//
// Commands report a handled non-zero outcome (a failed comparison) by
// returning an [ExitError]; main maps every other error to [ExitUsage].
package cli
