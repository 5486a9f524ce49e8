package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Koba-gh/bedrock-json-cdk/internal/metrics"
	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/table"
)

const gamingBeastArgs = `{"pc_name":"Gaming Beast X9000","cpu_name":"Intel Core i9-13900K","ram_gb":64,"storage_gb":2000,"resolution":"3840x2160","monitor_size_in":32}`

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// mapStore is an ObjectStore over a map keyed by "bucket/key".
type mapStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	gets    int
}

func newMapStore() *mapStore {
	return &mapStore{objects: make(map[string][]byte)}
}

func (s *mapStore) put(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storage.ObjectRef{Bucket: bucket, Key: key}.String()] = data
}

func (s *mapStore) Get(ctx context.Context, ref storage.ObjectRef) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.objects[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	return &storage.Object{Ref: ref, Data: data}, nil
}

type failingTable struct{ err error }

func (f failingTable) Put(ctx context.Context, item table.Item) error { return f.err }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	store   *mapStore
	records *table.MemoryStore
	client  *providers.MockClient
	metrics *metrics.Recorder
	proc    *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMapStore(),
		records: table.NewMemoryStore(),
		client:  providers.NewMockClient(),
		metrics: metrics.NewRecorder(),
	}
	f.client.ToolArguments = gamingBeastArgs
	proc, err := NewProcessor(Config{
		Client:  f.client,
		Store:   f.store,
		Table:   f.records,
		Model:   "test-model",
		Metrics: f.metrics,
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	f.proc = proc
	return f
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	client := providers.NewMockClient()
	store := newMapStore()
	records := table.NewMemoryStore()

	cases := map[string]Config{
		"no client": {Store: store, Table: records},
		"no store":  {Client: client, Table: records},
		"no table":  {Client: client, Store: store},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewProcessor(cfg); err == nil {
				t.Fatal("NewProcessor() expected error")
			}
		})
	}
}

func TestProcess_Image(t *testing.T) {
	f := newFixture(t)
	f.store.put("uploads", "desk/gaming beast.png", pngBytes(t))

	res, err := f.proc.Process(context.Background(), storage.ObjectRef{Bucket: "uploads", Key: "desk/gaming beast.png"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if f.records.Puts() != 1 {
		t.Fatalf("puts = %d, want 1", f.records.Puts())
	}
	item, ok := f.records.Get("desk/gaming beast.png")
	if !ok {
		t.Fatal("item not stored under the object key")
	}
	want := specs.Record{
		PCName:        "Gaming Beast X9000",
		CPUName:       "Intel Core i9-13900K",
		RAMGB:         64,
		StorageGB:     2000,
		Resolution:    "3840x2160",
		MonitorSizeIn: 32,
	}
	if item.Record != want {
		t.Errorf("record = %+v, want %+v", item.Record, want)
	}
	if item.Bucket != "uploads" || item.Provider != providers.MockClientName || item.ModelID != "test-model" {
		t.Errorf("provenance = %q/%q/%q", item.Bucket, item.Provider, item.ModelID)
	}
	if !item.ExtractedAt.Equal(fixedNow) {
		t.Errorf("extracted_at = %v, want %v", item.ExtractedAt, fixedNow)
	}
	if res.Media != "image" || res.Item.Name != item.Name || res.TotalTime <= 0 {
		t.Errorf("unexpected result %+v", res)
	}

	req, tools := f.client.LastRequest()
	if req.ToolChoice != specs.ToolName {
		t.Errorf("tool choice = %q, want %q", req.ToolChoice, specs.ToolName)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens, DefaultMaxTokens)
	}
	if len(tools) != 1 || tools[0].Function.Name != specs.ToolName {
		t.Fatalf("tools = %+v", tools)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Attachments) != 1 {
		t.Fatalf("messages = %+v", req.Messages)
	}
	att := req.Messages[0].Attachments[0]
	if att.Kind != providers.AttachmentImage || att.Format != "png" {
		t.Errorf("attachment = %s/%s, want image/png", att.Kind, att.Format)
	}
	if req.Messages[0].Content != specs.Prompt() {
		t.Error("request does not carry the extraction prompt")
	}

	if got := promtest.ToFloat64(f.metrics.ObjectsProcessed.WithLabelValues("success", "image")); got != 1 {
		t.Errorf("objects_processed{success,image} = %v, want 1", got)
	}
}

func TestProcess_TextObject(t *testing.T) {
	f := newFixture(t)
	f.store.put("b", "notes/spec.txt", []byte("Gaming Beast X9000, i9, 64GB RAM, 2TB, 32in 4K"))

	if _, err := f.proc.Process(context.Background(), storage.ObjectRef{Bucket: "b", Key: "notes/spec.txt"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	req, _ := f.client.LastRequest()
	att := req.Messages[0].Attachments[0]
	if att.Kind != providers.AttachmentText || att.Format != "txt" {
		t.Errorf("attachment = %s/%s, want text/txt", att.Kind, att.Format)
	}
}

func TestProcess_RejectsWithoutWriting(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		data  []byte
		setup func(f *fixture)
		want  error
		class Class
	}{
		{
			name:  "no tool call",
			key:   "a.png",
			setup: func(f *fixture) { f.client.NoToolCall = true },
			want:  ErrNoToolCall,
			class: ClassExtraction,
		},
		{
			name:  "missing fields",
			key:   "a.png",
			setup: func(f *fixture) { f.client.ToolArguments = `{"pc_name":"X","cpu_name":"Y"}` },
			want:  ErrInvalidExtraction,
			class: ClassExtraction,
		},
		{
			name: "wrong types",
			key:  "a.png",
			setup: func(f *fixture) {
				f.client.ToolArguments = strings.Replace(gamingBeastArgs, `"ram_gb":64`, `"ram_gb":"64GB"`, 1)
			},
			want:  ErrInvalidExtraction,
			class: ClassExtraction,
		},
		{
			name:  "bad resolution",
			key:   "a.png",
			setup: func(f *fixture) { f.client.ToolArguments = strings.Replace(gamingBeastArgs, "3840x2160", "4K", 1) },
			want:  ErrInvalidExtraction,
			class: ClassExtraction,
		},
		{
			name: "unicode blank names",
			key:  "a.png",
			setup: func(f *fixture) {
				args := strings.Replace(gamingBeastArgs, `"Gaming Beast X9000"`, `"\u00a0"`, 1)
				f.client.ToolArguments = strings.Replace(args, `"Intel Core i9-13900K"`, `"\u000b"`, 1)
			},
			want:  ErrInvalidExtraction,
			class: ClassExtraction,
		},
		{
			name:  "unsupported extension",
			key:   "report.docx",
			data:  []byte("PK"),
			want:  ErrUnsupportedMedia,
			class: ClassInput,
		},
		{
			name:  "corrupt image",
			key:   "a.png",
			data:  []byte("definitely not a png"),
			want:  ErrUnreadableInput,
			class: ClassInput,
		},
		{
			name:  "extension disagrees with content",
			key:   "a.jpg",
			want:  ErrUnreadableInput,
			class: ClassInput,
		},
		{
			name:  "empty text",
			key:   "a.txt",
			data:  []byte("  \n"),
			want:  ErrUnreadableInput,
			class: ClassInput,
		},
		{
			name:  "missing object",
			key:   "gone.png",
			setup: func(f *fixture) { f.store.objects = map[string][]byte{} },
			want:  storage.ErrNotFound,
			class: ClassInput,
		},
		{
			name:  "provider failure",
			key:   "a.png",
			setup: func(f *fixture) { f.client.Err = &providers.APIError{Provider: "mock", Code: "ThrottlingException", StatusCode: 429} },
			class: ClassUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			data := tt.data
			if data == nil {
				data = pngBytes(t)
			}
			f.store.put("b", tt.key, data)
			if tt.setup != nil {
				tt.setup(f)
			}

			res, err := f.proc.Process(context.Background(), storage.ObjectRef{Bucket: "b", Key: tt.key})
			if err == nil {
				t.Fatalf("Process() = %+v, want error", res)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Process() error = %v, want %v", err, tt.want)
			}
			if got := Classify(err); got != tt.class {
				t.Errorf("Classify() = %q, want %q", got, tt.class)
			}
			if f.records.Puts() != 0 {
				t.Errorf("puts = %d, want 0", f.records.Puts())
			}
			if got := promtest.ToFloat64(f.metrics.Errors.WithLabelValues(string(tt.class))); got != 1 {
				t.Errorf("errors_total{%s} = %v, want 1", tt.class, got)
			}
		})
	}
}

func TestProcess_UnsupportedSkipsRead(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Process(context.Background(), storage.ObjectRef{Bucket: "b", Key: "archive.zip"})
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("Process() error = %v, want ErrUnsupportedMedia", err)
	}
	if f.store.gets != 0 || f.client.RequestCount() != 0 {
		t.Errorf("gets = %d, requests = %d, want 0/0", f.store.gets, f.client.RequestCount())
	}
}

func TestProcess_StoreFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.store.put("b", "a.png", pngBytes(t))
	boom := errors.New("ProvisionedThroughputExceededException")
	proc, err := NewProcessor(Config{Client: f.client, Store: f.store, Table: failingTable{err: boom}})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	_, err = proc.Process(context.Background(), storage.ObjectRef{Bucket: "b", Key: "a.png"})
	if !errors.Is(err, boom) {
		t.Fatalf("Process() error = %v, want %v", err, boom)
	}
	if Classify(err) != ClassUpstream || Terminal(err) {
		t.Errorf("store failure classified %q", Classify(err))
	}
}

func TestProcess_ConcurrentDistinctKeys(t *testing.T) {
	f := newFixture(t)
	// Each object names its own PC; the mock echoes it back.
	f.client.ArgumentsFor = func(req *providers.ChatRequest) string {
		name := string(req.Messages[0].Attachments[0].Data)
		return strings.Replace(gamingBeastArgs, "Gaming Beast X9000", name, 1)
	}

	const n = 20
	for i := 0; i < n; i++ {
		f.store.put("b", fmt.Sprintf("pc-%02d.txt", i), []byte(fmt.Sprintf("PC %02d", i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.proc.Process(context.Background(), storage.ObjectRef{Bucket: "b", Key: fmt.Sprintf("pc-%02d.txt", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	if f.records.Len() != n {
		t.Fatalf("rows = %d, want %d", f.records.Len(), n)
	}
	for i := 0; i < n; i++ {
		item, _ := f.records.Get(fmt.Sprintf("pc-%02d.txt", i))
		if want := fmt.Sprintf("PC %02d", i); item.PCName != want {
			t.Errorf("row %d pc_name = %q, want %q", i, item.PCName, want)
		}
	}
}

func TestProcess_SameKeyOverwrites(t *testing.T) {
	f := newFixture(t)
	f.store.put("b", "a.png", pngBytes(t))
	ref := storage.ObjectRef{Bucket: "b", Key: "a.png"}

	if _, err := f.proc.Process(context.Background(), ref); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	f.client.ToolArguments = strings.Replace(gamingBeastArgs, `"ram_gb":64`, `"ram_gb":128`, 1)
	if _, err := f.proc.Process(context.Background(), ref); err != nil {
		t.Fatalf("second Process() error = %v", err)
	}

	if f.records.Len() != 1 {
		t.Fatalf("rows = %d, want 1", f.records.Len())
	}
	item, _ := f.records.Get("a.png")
	if item.RAMGB != 128 {
		t.Errorf("ram_gb = %v, want the second delivery's 128", item.RAMGB)
	}
}

func TestProcess_ContextCanceled(t *testing.T) {
	f := newFixture(t)
	f.store.put("b", "a.png", pngBytes(t))
	f.client.Latency = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.proc.Process(ctx, storage.ObjectRef{Bucket: "b", Key: "a.png"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	if f.records.Puts() != 0 {
		t.Errorf("puts = %d, want 0", f.records.Puts())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{fmt.Errorf("wrap: %w", ErrUnsupportedMedia), ClassInput},
		{fmt.Errorf("wrap: %w", providers.ErrUnsupportedAttachment), ClassInput},
		{fmt.Errorf("wrap: %w", storage.ErrObjectTooLarge), ClassInput},
		{fmt.Errorf("wrap: %w", specs.ErrInvalidExtraction), ClassExtraction},
		{ErrNoToolCall, ClassExtraction},
		{errors.New("connection reset"), ClassUpstream},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
