//go:build !darwin && !linux

package screen

func platformTool() (tool, error) {
	return nil, ErrUnsupported
}
