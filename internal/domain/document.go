package domain

// Metadata keys assigned by the ingestion layer.
const (
	MetaSource   = "source"
	MetaS3Bucket = "s3_bucket"
	MetaS3Key    = "s3_key"
	MetaPage     = "page"
	MetaChunk    = "chunk"
)

// Document is a unit of loaded text plus provenance metadata. Loading
// produces documents; chunking produces new documents that share the parent's
// metadata plus a chunk index.
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// WithMetadata returns a copy of the document with the overlay merged in.
// Overlay keys win over existing keys.
func (d Document) WithMetadata(overlay map[string]string) Document {
	if len(overlay) == 0 {
		return d
	}
	merged := make(map[string]string, len(d.Metadata)+len(overlay))
	for k, v := range d.Metadata {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	d.Metadata = merged
	return d
}

func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
