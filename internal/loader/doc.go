// Package loader reads model checkpoints into named array sets.
//
// Supported formats:
//   - SafeTensors: the Hugging Face format, read lazily per tensor
//   - NPZ: NumPy archives as written by np.savez
//   - Bundle: indexed .pbnd bundles with checksums
//
// Parameter names are kept as stored (e.g. "layer1.0.conv1.weight"); the
// mapper package turns them into flat export keys.
//
// Example:
//
//	ckpt, err := loader.OpenCheckpoint("path/to/resnet50.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//
//	w, err := ckpt.LoadArray("conv1.weight")
//	if err != nil {
//	    log.Fatal(err)
//	}
package loader
