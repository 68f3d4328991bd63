// simulate drives the booking API with concurrent workers so the per-slot
// lock and resequencing paths get exercised under real contention.
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
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicq/token-service/internal/config"
	"github.com/clinicq/token-service/internal/db"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "simulate").Logger()

var categories = []string{"PRIORITY_PAID", "FOLLOWUP", "ONLINE", "WALKIN"}

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	CancelRatio    float64
	EmergencyRatio float64
	DelayRatio     float64
	PostgresDSN    string
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []uuid.UUID

	mu     sync.RWMutex
	tokens []uuid.UUID
}

func (dp *DataPool) AddToken(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.tokens = append(dp.tokens, id)
}

func (dp *DataPool) RandomToken() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.tokens) == 0 {
		return uuid.Nil, false
	}
	return dp.tokens[rand.Intn(len(dp.tokens))], true
}

type OpMetrics struct {
	Total      int64
	Success    int64
	Waitlisted int64
	Busy       int64
	Rejected   int64
	Error      int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *OpMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusAccepted:
		atomic.AddInt64(&m.Waitlisted, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusServiceUnavailable:
		atomic.AddInt64(&m.Busy, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Rejected, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *OpMetrics) Percentiles() (p50, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(50)], sorted[idx(95)]
}

type Simulator struct {
	cfg    SimConfig
	pool   *DataPool
	client *http.Client

	book      OpMetrics
	cancel    OpMetrics
	emergency OpMetrics
	delay     OpMetrics
}

func main() {
	logger.Info().Msg("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("slots", len(dataPool.Slots)).Msg("data loaded")

	sim := &Simulator{
		cfg:    cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load base config")
	}

	return SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.2),
		EmergencyRatio: getFloat("SIM_EMERGENCY_RATIO", 0.05),
		DelayRatio:     getFloat("SIM_DELAY_RATIO", 0.05),
		PostgresDSN:    baseCfg.PostgresDSN,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 2000`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM slots
		WHERE status = 'ACTIVE' AND start_time > now()
		LIMIT 500
	`)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Slots = append(dp.Slots, id)
	}

	if len(dp.Patients) == 0 || len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no patients or slots found, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	logger.Info().Int("workers", s.cfg.Workers).Dur("duration", s.cfg.Duration).Msg("running")

	deadline := time.Now().Add(s.cfg.Duration)
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				s.step()
			}
		}()
	}

	wg.Wait()
}

func (s *Simulator) step() {
	roll := rand.Float64()
	switch {
	case roll < s.cfg.CancelRatio:
		s.doCancel()
	case roll < s.cfg.CancelRatio+s.cfg.EmergencyRatio:
		s.doEmergency()
	case roll < s.cfg.CancelRatio+s.cfg.EmergencyRatio+s.cfg.DelayRatio:
		s.doDelay()
	default:
		s.doBook()
	}
}

func (s *Simulator) doBook() {
	body := map[string]string{
		"slot_id":    s.pool.Slots[rand.Intn(len(s.pool.Slots))].String(),
		"patient_id": s.pool.Patients[rand.Intn(len(s.pool.Patients))].String(),
		"category":   categories[rand.Intn(len(categories))],
	}

	status, resp, latency := s.post("/tokens", body)
	s.book.Record(latency, status)

	if status == http.StatusCreated {
		var out struct {
			Token struct {
				ID uuid.UUID `json:"id"`
			} `json:"token"`
		}
		if err := json.Unmarshal(resp, &out); err == nil && out.Token.ID != uuid.Nil {
			s.pool.AddToken(out.Token.ID)
		}
	}
}

func (s *Simulator) doCancel() {
	id, ok := s.pool.RandomToken()
	if !ok {
		s.doBook()
		return
	}

	start := time.Now()
	req, _ := http.NewRequest(http.MethodDelete, s.cfg.APIBaseURL+"/tokens/"+id.String(), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		s.cancel.Record(time.Since(start), 0)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	s.cancel.Record(time.Since(start), resp.StatusCode)
}

func (s *Simulator) doEmergency() {
	body := map[string]string{
		"slot_id":    s.pool.Slots[rand.Intn(len(s.pool.Slots))].String(),
		"patient_id": s.pool.Patients[rand.Intn(len(s.pool.Patients))].String(),
	}
	status, _, latency := s.post("/tokens/emergency", body)
	s.emergency.Record(latency, status)
}

func (s *Simulator) doDelay() {
	slotID := s.pool.Slots[rand.Intn(len(s.pool.Slots))]
	payload, _ := json.Marshal(map[string]int{"delay_minutes": rand.Intn(15) + 1})

	start := time.Now()
	req, _ := http.NewRequest(http.MethodPut, s.cfg.APIBaseURL+"/slots/"+slotID.String()+"/delay", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.delay.Record(time.Since(start), 0)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	s.delay.Record(time.Since(start), resp.StatusCode)
}

func (s *Simulator) post(path string, body map[string]string) (int, []byte, time.Duration) {
	payload, _ := json.Marshal(body)

	start := time.Now()
	resp, err := s.client.Post(s.cfg.APIBaseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, time.Since(start)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, time.Since(start)
}

func (s *Simulator) PrintReport() {
	report := func(name string, m *OpMetrics) {
		p50, p95 := m.Percentiles()
		logger.Info().
			Str("op", name).
			Int64("total", m.Total).
			Int64("success", m.Success).
			Int64("waitlisted", m.Waitlisted).
			Int64("busy", m.Busy).
			Int64("rejected", m.Rejected).
			Int64("error", m.Error).
			Dur("p50", p50).
			Dur("p95", p95).
			Msg("results")
	}

	report("book", &s.book)
	report("cancel", &s.cancel)
	report("emergency", &s.emergency)
	report("delay", &s.delay)
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
