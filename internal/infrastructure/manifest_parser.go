package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// AutoDetectParser sniffs the serialized manifest and dispatches to the
// DASH or HLS adapter. Providers hand over raw manifest bytes without
// declaring the format.
type AutoDetectParser struct {
	dash *MPDParser
	hls  *HLSParser
}

// NewAutoDetectParser creates the format-sniffing manifest parser.
func NewAutoDetectParser(client *http.Client, logger *zap.Logger) *AutoDetectParser {
	return &AutoDetectParser{
		dash: NewMPDParser(logger),
		hls:  NewHLSParser(client, logger),
	}
}

// Parse dispatches on the manifest's leading bytes: an XML document is
// treated as DASH, an EXTM3U header as HLS.
func (p *AutoDetectParser) Parse(ctx context.Context, raw []byte) (domain.Manifest, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("<")):
		return p.dash.Parse(ctx, raw)
	case bytes.HasPrefix(trimmed, []byte("#EXTM3U")):
		return p.hls.Parse(ctx, raw)
	default:
		return nil, fmt.Errorf("unrecognized manifest format")
	}
}
