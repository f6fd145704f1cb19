// Package serialization provides the native .drift format for saving
// and loading model weights and training checkpoints.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00  Magic "DRFT"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE)
//	    0x0C  Reserved
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 checksum of the data section
//	  [Header: JSON metadata, tensor directory, optional checkpoint meta]
//	  [Tensor data: raw little-endian bytes, 64-byte aligned]
//
// The format supports multiple data types (float32, float64, int64,
// uint8), arbitrary tensor shapes, custom metadata, and checkpoint
// metadata carrying optimizer, scheduler and scaler state alongside
// the weights.
//
// Example usage:
//
//	// Save a state dictionary
//	writer, err := serialization.NewDriftWriter("model.drift")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := writer.WriteStateDict(model.StateDict(), "UNet3D", nil); err != nil {
//	    log.Fatal(err)
//	}
//	writer.Close()
//
//	// Load it back
//	reader, err := serialization.NewDriftReader("model.drift")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stateDict, err := reader.ReadStateDict(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model.LoadStateDict(stateDict)
//	reader.Close()
package serialization
