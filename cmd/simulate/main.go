package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookRatio         float64
	CancelRatio       float64
	ReadRatio         float64
	MaxSelection      int
	PatientLimit      int
	PractitionerLimit int
	Location          *time.Location
	PostgresDSN       string
}

type bookedSlot struct {
	slotID    uuid.UUID
	patientID uuid.UUID
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
	mu            sync.RWMutex
	booked        []bookedSlot
}

func (dp *DataPool) AddBooked(b bookedSlot) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, b)
}

// TakeBooked removes and returns a random booked slot.
func (dp *DataPool) TakeBooked(rng *rand.Rand) (bookedSlot, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.booked) == 0 {
		return bookedSlot{}, false
	}
	idx := rng.Intn(len(dp.booked))
	b := dp.booked[idx]
	dp.booked = slices.Delete(dp.booked, idx, idx+1)
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Availability OperationMetrics
	Review       OperationMetrics
	Checkout     OperationMetrics
	Cancel       OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *logrus.Logger
	metrics Metrics
}

func main() {
	cfg, log := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Infof("config: duration=%s workers=%d book=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Infof("loaded: %d patients, %d practitioners", len(dataPool.Patients), len(dataPool.Practitioners))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, *logrus.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookRatio:         getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio:       getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.4),
		MaxSelection:      getInt("SIM_MAX_SELECTION", 3),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 1000),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 10),
		Location:          baseCfg.Location,
		PostgresDSN:       baseCfg.PostgresDSN,
	}

	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logging.New(baseCfg.Env, baseCfg.LogLevel)
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.MaxSelection <= 0 {
		return fmt.Errorf("SIM_MAX_SELECTION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	// concentrate load on few practitioners so bookings contend
	dataPool.Practitioners, err = loadIDs(ctx, pool, `
		SELECT DISTINCT practitioner_id FROM appointment_slots
		WHERE patient_id IS NULL AND start_time > now()
		LIMIT $1
	`, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners with open slots loaded")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Infof("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				s.fetchAvailability(ctx, rng, s.randomPractitioner(rng))
			}
		}
	}
}

type slotView struct {
	ID    uuid.UUID `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Simulator) randomPractitioner(rng *rand.Rand) uuid.UUID {
	return s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
}

func (s *Simulator) fetchAvailability(ctx context.Context, rng *rand.Rand, practitionerID uuid.UUID) []slotView {
	date := time.Now().In(s.config.Location).AddDate(0, 0, 1+rng.Intn(5)).Format(time.DateOnly)
	url := fmt.Sprintf("%s/practitioners/%s/availability?date=%s", s.config.APIBaseURL, practitionerID, date)

	start := time.Now()
	status, body, err := s.do(ctx, http.MethodGet, url, nil)
	latency := time.Since(start)

	if err != nil || status != http.StatusOK {
		s.metrics.Availability.Record(latency, false, false)
		return nil
	}
	s.metrics.Availability.Record(latency, true, false)

	var resp struct {
		Slots []slotView `json:"slots"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	return resp.Slots
}

// doBooking reviews a run of adjacent open slots and checks it out.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	practitionerID := s.randomPractitioner(rng)
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	slots := s.fetchAvailability(ctx, rng, practitionerID)
	if len(slots) == 0 {
		return
	}

	first := rng.Intn(len(slots))
	selection := []string{slots[first].ID.String()}
	for i := first + 1; i < len(slots) && len(selection) < s.config.MaxSelection; i++ {
		if !slots[i].Start.Equal(slots[i-1].End) {
			break
		}
		selection = append(selection, slots[i].ID.String())
	}

	session := uuid.NewString()
	reviewURL := fmt.Sprintf("%s/baskets/%s/review", s.config.APIBaseURL, session)

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, reviewURL, map[string]any{
		"patient_id":      patientID.String(),
		"practitioner_id": practitionerID.String(),
		"appointment_ids": selection,
	})
	s.metrics.Review.Record(time.Since(start), err == nil && status == http.StatusOK, isConflict(status))
	if err != nil || status != http.StatusOK {
		return
	}

	checkoutURL := fmt.Sprintf("%s/baskets/%s/checkout", s.config.APIBaseURL, session)

	start = time.Now()
	status, body, err := s.do(ctx, http.MethodPost, checkoutURL, map[string]any{
		"patient_id": patientID.String(),
	})
	success := err == nil && status == http.StatusCreated
	s.metrics.Checkout.Record(time.Since(start), success, isConflict(status))
	if !success {
		return
	}

	var resp struct {
		Booked []slotView `json:"booked"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		for _, b := range resp.Booked {
			s.pool.AddBooked(bookedSlot{slotID: b.ID, patientID: patientID})
		}
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooked(rng)
	if !ok {
		return
	}

	url := fmt.Sprintf("%s/slots/%s/cancel", s.config.APIBaseURL, b.slotID)

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, url, map[string]any{
		"patient_id": b.patientID.String(),
	})
	s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK, isConflict(status))
}

func (s *Simulator) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func isConflict(status int) bool {
	return status == http.StatusConflict || status == http.StatusUnprocessableEntity
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Review", &s.metrics.Review)
	printOperationReport("Checkout", &s.metrics.Checkout)
	printOperationReport("Cancel", &s.metrics.Cancel)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
