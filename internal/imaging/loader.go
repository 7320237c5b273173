package imaging

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// File is an image file read into memory after passing the upload rules.
type File struct {
	Path string
	Size int64

	// MIME is sniffed from the file contents, never from the extension.
	MIME string

	Data []byte
}

// ReadFile loads the image at path for conversion.
//
// The size and sniffed type are checked against guard before any bytes
// beyond the header are read, so oversized or non-image files are never
// loaded. Files are read fresh on every call; nothing is cached.
//
// # Errors
//
//   - A guard rejection is returned as *LimitError together with a File
//     carrying Path, Size and MIME but no Data.
//   - Missing files, directories and read failures return a nil File.
func ReadFile(path string, guard *Guard) (*File, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect image type: %w", err)
	}

	f := &File{Path: path, Size: st.Size(), MIME: mt.String()}
	if err := guard.CheckUpload(f.Size, f.MIME); err != nil {
		return f, err
	}

	f.Data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return f, nil
}
