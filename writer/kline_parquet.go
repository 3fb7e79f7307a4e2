package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "spotgate/config"
	"spotgate/internal/metrics"
	"spotgate/logger"
	"spotgate/models"
)

const (
	klineKeySeparator    = "|"
	defaultKlineFlush    = time.Minute
	defaultKlineBuffer   = 500
	klineIngestQueueSize = 1024
)

// ErrArchiveBufferFull is returned by SaveKline when the ingest queue is full.
var ErrArchiveBufferFull = errors.New("kline archive buffer full")

var errWriterStopped = errors.New("kline parquet writer is not running")

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type klineBatch struct {
	Symbol    string
	Interval  string
	Records   []models.KlineRecord
	Timestamp time.Time
}

// KlineParquetWriter buffers klines per (symbol, interval) and uploads them to
// S3 as snappy-compressed parquet files, on a timer or when a buffer fills.
type KlineParquetWriter struct {
	s3Client      objectPutter
	log           *logger.Log
	bucket        string
	prefix        string
	flushInterval time.Duration
	maxBufferSize int

	in          chan models.KlineRecord
	ctx         context.Context
	cancel      context.CancelFunc
	wg          *sync.WaitGroup
	running     bool
	mu          sync.Mutex
	buffer      map[string][]models.KlineRecord
	lastFlush   map[string]time.Time
	flushTicker *time.Ticker
	now         func() time.Time
}

// NewKlineParquetWriter builds the S3 client from cfg; static credentials are
// used when both keys are set, otherwise the default AWS chain.
func NewKlineParquetWriter(ctx context.Context, cfg appconfig.S3Config) (*KlineParquetWriter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 archive is disabled")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newKlineParquetWriter(cfg, client)
}

func newKlineParquetWriter(cfg appconfig.S3Config, client objectPutter) (*KlineParquetWriter, error) {
	bucket, err := normalizeBucketName(cfg.Bucket)
	if err != nil {
		return nil, err
	}

	w := &KlineParquetWriter{
		s3Client:      client,
		log:           logger.GetLogger(),
		bucket:        bucket,
		prefix:        strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		flushInterval: cfg.FlushInterval,
		maxBufferSize: cfg.MaxBufferSize,
		wg:            &sync.WaitGroup{},
		buffer:        make(map[string][]models.KlineRecord),
		lastFlush:     make(map[string]time.Time),
		now:           time.Now,
	}
	if w.flushInterval <= 0 {
		w.flushInterval = defaultKlineFlush
	}
	if w.maxBufferSize <= 0 {
		w.maxBufferSize = defaultKlineBuffer
	}

	w.log.WithComponent("kline_parquet_writer").WithFields(logger.Fields{
		"bucket":     bucket,
		"prefix":     w.prefix,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("kline parquet writer initialized")

	return w, nil
}

func normalizeBucketName(raw string) (string, error) {
	bucket := strings.TrimSpace(raw)
	if bucket == "" {
		return "", fmt.Errorf("s3 bucket not configured")
	}
	return bucket, nil
}

// Start launches the ingestion and flush workers.
func (w *KlineParquetWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("kline parquet writer already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.in = make(chan models.KlineRecord, klineIngestQueueSize)
	tickerInterval := w.flushInterval
	if tickerInterval > time.Second {
		tickerInterval = time.Second
	}
	w.flushTicker = time.NewTicker(tickerInterval)
	w.mu.Unlock()

	w.log.WithComponent("kline_parquet_writer").WithFields(logger.Fields{
		"ticker_interval": tickerInterval.String(),
		"max_buffer":      w.maxBufferSize,
	}).Info("starting kline parquet writer")

	w.wg.Add(2)
	go w.worker()
	go w.flushWorker()
	return nil
}

// Stop terminates the workers and flushes what is buffered.
func (w *KlineParquetWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	ticker := w.flushTicker
	w.cancel = nil
	w.flushTicker = nil
	w.mu.Unlock()

	ticker.Stop()
	cancel()

	w.wg.Wait()
	w.flushAll("stop")
	w.log.WithComponent("kline_parquet_writer").Info("kline parquet writer stopped")
}

// SaveKline queues rec without blocking. A full queue drops the record.
func (w *KlineParquetWriter) SaveKline(ctx context.Context, rec models.KlineRecord) error {
	w.mu.Lock()
	running := w.running
	in := w.in
	w.mu.Unlock()
	if !running {
		return errWriterStopped
	}

	select {
	case in <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		metrics.EmitDropMetric(w.log, metrics.DropMetricArchive, rec.Symbol, "kline", "buffer_full")
		return ErrArchiveBufferFull
	}
}

func (w *KlineParquetWriter) worker() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			for {
				select {
				case rec := <-w.in:
					w.add(rec)
				default:
					return
				}
			}
		case rec := <-w.in:
			w.add(rec)
		}
	}
}

func (w *KlineParquetWriter) flushWorker() {
	defer w.wg.Done()
	ticker := w.flushTicker
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushTimedOut()
		}
	}
}

func (w *KlineParquetWriter) add(rec models.KlineRecord) {
	if rec.Symbol == "" || rec.Interval == "" {
		return
	}
	key := bufferKey(rec.Symbol, rec.Interval)
	w.mu.Lock()
	w.buffer[key] = append(w.buffer[key], rec)
	if _, ok := w.lastFlush[key]; !ok {
		w.lastFlush[key] = w.now()
	}
	shouldFlush := len(w.buffer[key]) >= w.maxBufferSize
	w.mu.Unlock()

	if shouldFlush {
		w.flushKey(key)
	}
}

func (w *KlineParquetWriter) flushTimedOut() {
	now := w.now()
	w.mu.Lock()
	keys := make([]string, 0, len(w.buffer))
	for key, recs := range w.buffer {
		if len(recs) > 0 && now.Sub(w.lastFlush[key]) >= w.flushInterval {
			keys = append(keys, key)
		}
	}
	w.mu.Unlock()

	for _, key := range keys {
		w.flushKey(key)
	}
}

func (w *KlineParquetWriter) flushAll(reason string) {
	w.mu.Lock()
	keys := make([]string, 0, len(w.buffer))
	for key, recs := range w.buffer {
		if len(recs) > 0 {
			keys = append(keys, key)
		}
	}
	w.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	w.log.WithComponent("kline_parquet_writer").WithFields(logger.Fields{
		"flushed_buffers": len(keys),
		"reason":          reason,
	}).Info("flushing kline buffers")

	sort.Strings(keys)
	for _, key := range keys {
		w.flushKey(key)
	}
}

func (w *KlineParquetWriter) flushKey(key string) {
	w.mu.Lock()
	recs := w.buffer[key]
	if len(recs) == 0 {
		w.mu.Unlock()
		return
	}
	delete(w.buffer, key)
	delete(w.lastFlush, key)
	w.mu.Unlock()

	parts := strings.SplitN(key, klineKeySeparator, 2)
	batch := klineBatch{Symbol: parts[0], Records: latestPerCandle(recs)}
	if len(parts) > 1 {
		batch.Interval = parts[1]
	}
	for _, rec := range batch.Records {
		if ts := time.UnixMilli(rec.StartTime); ts.After(batch.Timestamp) {
			batch.Timestamp = ts
		}
	}
	if batch.Timestamp.IsZero() {
		batch.Timestamp = w.now().UTC()
	}

	w.writeBatch(batch)
}

// latestPerCandle keeps the last update of each candle, ordered by start time.
func latestPerCandle(recs []models.KlineRecord) []models.KlineRecord {
	latest := make(map[int64]models.KlineRecord, len(recs))
	for _, rec := range recs {
		latest[rec.StartTime] = rec
	}
	out := make([]models.KlineRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (w *KlineParquetWriter) writeBatch(batch klineBatch) {
	data, err := createParquet(batch.Records)
	if err != nil {
		w.log.WithComponent("kline_parquet_writer").WithError(err).Error("failed to create parquet for kline batch")
		return
	}

	key := w.objectKey(batch)
	if err := w.upload(key, data); err != nil {
		w.log.WithComponent("kline_parquet_writer").WithError(err).WithFields(logger.Fields{
			"s3_key": key,
		}).Error("failed to upload kline batch")
		return
	}

	logger.LogDataFlow(w.log.WithComponent("kline_parquet_writer"), "kline_buffer", "s3", len(batch.Records), "kline")
	w.log.WithComponent("kline_parquet_writer").WithFields(logger.Fields{
		"s3_key":  key,
		"records": len(batch.Records),
		"bytes":   len(data),
	}).Info("kline batch uploaded")
}

func createParquet(recs []models.KlineRecord) ([]byte, error) {
	mf := newMemFile()
	pw, err := pqwriter.NewParquetWriter(mf, new(models.KlineRecord), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range recs {
		if err := pw.Write(rec); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return mf.Bytes(), nil
}

func (w *KlineParquetWriter) upload(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.apache.parquet"),
	}

	ctx := context.Background()
	if w.ctx != nil {
		ctx = context.WithoutCancel(w.ctx)
	}
	_, err := w.s3Client.PutObject(ctx, input)
	return err
}

func bufferKey(symbol, interval string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + klineKeySeparator + strings.TrimSpace(interval)
}

// objectKey lays batches out as
// {prefix}/symbol=X/interval=Y/date=YYYY-MM-DD/X_Y_<ts>_<id>.parquet.
func (w *KlineParquetWriter) objectKey(batch klineBatch) string {
	ts := batch.Timestamp.UTC()
	parts := []string{}
	if w.prefix != "" {
		parts = append(parts, w.prefix)
	}
	parts = append(parts,
		"symbol="+batch.Symbol,
		"interval="+batch.Interval,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
	)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	filename := fmt.Sprintf("%s_%s_%s_%s.parquet", batch.Symbol, batch.Interval, ts.Format("20060102150405"), id)
	return path.Join(append(parts, filename)...)
}
