package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an input into the route it takes before composing.
type Kind string

const (
	KindPDF         Kind = "pdf"    // composed directly
	KindOffice      Kind = "office" // converted to PDF first
	KindImage       Kind = "image"  // wrapped into a one-page PDF first
	KindUnsupported Kind = "unsupported"
)

// Info contains detected file type information.
type Info struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// Supported reports whether the file can enter the compose pipeline.
func (i *Info) Supported() bool { return i.Kind != KindUnsupported }

// RequiresConversion reports whether the file needs an office-to-PDF
// conversion before composing.
func (i *Info) RequiresConversion() bool { return i.Kind == KindOffice }

// Detector resolves file types from magic bytes, not filenames.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// officeByExt resolves ZIP and OLE containers into concrete office formats.
// Modern office files are ZIP archives and legacy ones are OLE storages, so
// the magic bytes alone cannot tell a .docx from any other ZIP.
var officeByExt = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".odp":  "application/vnd.oasis.opendocument.presentation",
	".doc":  "application/msword",
	".xls":  "application/vnd.ms-excel",
	".ppt":  "application/vnd.ms-powerpoint",
}

// Detect detects the actual file type using magic bytes.
func (d *Detector) Detect(filePath string) (*Info, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()
	log.Debug().Str("mime", mimeType).Str("ext", extension).Str("file", filePath).Msg("detected file type")

	if isContainer(mimeType) {
		ext := strings.ToLower(filepath.Ext(filePath))
		if override, ok := officeByExt[ext]; ok {
			log.Debug().Str("original", mimeType).Str("override", override).Msg("resolving container by extension")
			mimeType = override
			extension = ext
		} else {
			log.Warn().Str("ext", ext).Str("mime", mimeType).Msg("container file with unrecognized extension")
		}
	}

	info := &Info{MIMEType: mimeType, Extension: extension}
	d.classify(info)
	return info, nil
}

func isContainer(mimeType string) bool {
	return mimeType == "application/zip" ||
		strings.Contains(mimeType, "application/x-zip") ||
		mimeType == "application/x-ole-storage" ||
		mimeType == "application/x-cfb"
}

func (d *Detector) classify(info *Info) {
	switch {
	case info.MIMEType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"

	case isOfficeMIME(info.MIMEType):
		info.Kind = KindOffice
		info.Description = "Office document"

	case info.MIMEType == "application/rtf" || strings.HasPrefix(info.MIMEType, "text/"):
		info.Kind = KindOffice
		info.Description = "Text document"

	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Kind = KindImage
		info.Description = "Image file"

	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}

func isOfficeMIME(mimeType string) bool {
	for _, m := range officeByExt {
		if m == mimeType {
			return true
		}
	}
	return false
}
