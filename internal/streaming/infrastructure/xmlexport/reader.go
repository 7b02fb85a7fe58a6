package xmlexport

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"health-importer/internal/health/domain"
	"health-importer/internal/tracking/domain"
)

const readBufferSize = 1 << 20

var elementKinds = map[string]health.ElementKind{
	"Record":          health.ElementRecord,
	"Workout":         health.ElementWorkout,
	"ActivitySummary": health.ElementActivitySummary,
}

type rawMetadata struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type rawStatistic struct {
	Type string `xml:"type,attr"`
	Sum  string `xml:"sum,attr"`
	Unit string `xml:"unit,attr"`
}

type rawElement struct {
	Attrs      []xml.Attr     `xml:",any,attr"`
	Metadata   []rawMetadata  `xml:"MetadataEntry"`
	Statistics []rawStatistic `xml:"WorkoutStatistics"`
}

func (r rawElement) toElement(kind health.ElementKind) health.Element {
	el := health.Element{Kind: kind, Attrs: make(map[string]string, len(r.Attrs))}
	for _, attr := range r.Attrs {
		el.Attrs[attr.Name.Local] = attr.Value
	}
	if len(r.Metadata) > 0 {
		el.Metadata = make(map[string]string, len(r.Metadata))
		for _, m := range r.Metadata {
			el.Metadata[m.Key] = m.Value
		}
	}
	for _, s := range r.Statistics {
		el.Statistics = append(el.Statistics, health.Statistic{Type: s.Type, Sum: s.Sum, Unit: s.Unit})
	}
	return el
}

// Reader streams Record, Workout and ActivitySummary elements from an
// Apple Health export without loading the document.
type Reader struct{}

// NewReader constructs a reader.
func NewReader() *Reader {
	return &Reader{}
}

// Count scans path once and returns the number of elements per kind.
func (r *Reader) Count(ctx context.Context, path string) (tracking.Position, error) {
	var counts tracking.Position
	err := scan(ctx, path, func(dec *xml.Decoder, start xml.StartElement, kind health.ElementKind) error {
		counts.Advance(kind)
		return nil
	})
	return counts, err
}

// Stream calls fn for every element in document order, skipping the first
// from.Of(kind) elements of each kind. An error from fn stops the stream
// and is returned unchanged.
func (r *Reader) Stream(ctx context.Context, path string, from tracking.Position, fn func(health.Element) error) error {
	var seen tracking.Position
	return scan(ctx, path, func(dec *xml.Decoder, start xml.StartElement, kind health.ElementKind) error {
		index := seen.Of(kind)
		seen.Advance(kind)
		if index < from.Of(kind) {
			return dec.Skip()
		}
		var raw rawElement
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return fmt.Errorf("xmlexport: decode %s: %w", start.Name.Local, err)
		}
		return fn(raw.toElement(kind))
	})
}

type visitFunc func(dec *xml.Decoder, start xml.StartElement, kind health.ElementKind) error

func scan(ctx context.Context, path string, visit visitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("xmlexport: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(bufio.NewReaderSize(f, readBufferSize))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("xmlexport: read %s: %w", path, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		kind, ok := elementKinds[start.Name.Local]
		if !ok {
			continue
		}
		if err := visit(dec, start, kind); err != nil {
			return err
		}
	}
}
