package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Repository persists audit records. Implementations must treat records as
// append-only.
type Repository interface {
	Store(ctx context.Context, rec Record) error
	Query(ctx context.Context, filter Filter) ([]Record, error)
}

// FileRepository writes records as JSON lines into date-segmented files
// (audit-2006-01-02.log) under a directory.
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) segmentPath(ts time.Time) string {
	return filepath.Join(r.dir, fmt.Sprintf("audit-%s.log", ts.UTC().Format("2006-01-02")))
}

func (r *FileRepository) Store(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.segmentPath(rec.Timestamp), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open audit segment: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return f.Sync()
}

func (r *FileRepository) Query(ctx context.Context, filter Filter) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments, err := filepath.Glob(filepath.Join(r.dir, "audit-*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(segments)

	var out []Record
	for _, seg := range segments {
		f, err := os.Open(seg)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit segment: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var rec Record
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				f.Close()
				return nil, fmt.Errorf("corrupt audit segment %s: %w", seg, err)
			}
			if filter.matches(rec) {
				out = append(out, rec)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// TrimSegmentsBefore deletes segment files whose date falls entirely before
// the cutoff day. Called by the retention sweep after the records have been
// archived.
func (r *FileRepository) TrimSegmentsBefore(ctx context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments, err := filepath.Glob(filepath.Join(r.dir, "audit-*.log"))
	if err != nil {
		return err
	}
	cutoffDay := cutoff.UTC().Format("2006-01-02")
	for _, seg := range segments {
		day := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(seg), "audit-"), ".log")
		if day < cutoffDay {
			if err := os.Remove(seg); err != nil {
				return fmt.Errorf("failed to remove expired audit segment: %w", err)
			}
		}
	}
	return nil
}

// ElasticsearchRepository archives audit records for long-term search.
type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient, index: "sentinel-audit"}, nil
}

func (r *ElasticsearchRepository) Store(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: fmt.Sprintf("%016d", rec.Sequence),
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing audit record: %s", res.String())
	}
	return nil
}

func (r *ElasticsearchRepository) Query(ctx context.Context, filter Filter) ([]Record, error) {
	must := []interface{}{}
	if !filter.Start.IsZero() || !filter.End.IsZero() {
		rangeQ := map[string]interface{}{}
		if !filter.Start.IsZero() {
			rangeQ["gte"] = filter.Start.Format(time.RFC3339)
		}
		if !filter.End.IsZero() {
			rangeQ["lte"] = filter.End.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": rangeQ},
		})
	}
	if filter.PrincipalID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"principal_id": filter.PrincipalID},
		})
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		must = append(must, map[string]interface{}{
			"terms": map[string]interface{}{"type": types},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []interface{}{
			map[string]interface{}{"sequence": map[string]interface{}{"order": "asc"}},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching audit records: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	records := make([]Record, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &records[i])
	}
	return records, nil
}
