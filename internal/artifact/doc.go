// Package artifact loads and writes the array collections that the two
// sides of a parity check exchange.
//
// A location is a directory of .npy files, an .npz archive, a .pbnd bundle,
// or a single .npy file. Activation dumps use staged keys of the form
// "NN_suffix" (see StageKey) so both producers agree on names and order.
package artifact
