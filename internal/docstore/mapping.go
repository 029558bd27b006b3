package docstore

import "bookclub/internal/observability"

// MapDocuments decodes every document with decode and keeps only the
// records that decode cleanly. The second result is the number dropped.
func MapDocuments[T any](docs []Document, decode func(Document) (T, error)) ([]T, int) {
	out := make([]T, 0, len(docs))
	dropped := 0
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}

// MapCollection is MapDocuments plus a dropped-document metric labelled by
// the collection kind of path.
func MapCollection[T any](path string, docs []Document, decode func(Document) (T, error)) []T {
	out, dropped := MapDocuments(docs, decode)
	if dropped > 0 {
		observability.DroppedDocuments.WithLabelValues(CollectionLabel(path)).Add(float64(dropped))
	}
	return out
}
