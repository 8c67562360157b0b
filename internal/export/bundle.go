package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// FCPXMLInfoFile is the document name inside an .fcpxmld bundle.
const FCPXMLInfoFile = "Info.fcpxml"

// WriteEDL writes EDL text to path, replacing any existing file.
func WriteEDL(path, edl string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := writeFileAtomic(path, []byte(edl)); err != nil {
		return fmt.Errorf("write edl: %w", err)
	}
	return nil
}

// WriteFCPXMLBundle writes doc as bundle/Info.fcpxml, creating the bundle
// directory. It returns the path of the written document.
func WriteFCPXMLBundle(bundle string, doc *Document) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(bundle, 0755); err != nil {
		return "", fmt.Errorf("create fcpxml bundle: %w", err)
	}

	path := filepath.Join(bundle, FCPXMLInfoFile)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write fcpxml: %w", err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
