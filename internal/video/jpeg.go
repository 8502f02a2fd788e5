package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SaveJPEG writes a frame to disk as a JPEG artifact.
func SaveJPEG(f Frame, path string) error {
	mat, err := matFromFrame(f)
	if err != nil {
		return err
	}
	defer mat.Close()
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("imwrite %s failed", path)
	}
	return nil
}
