package services

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/models"
	"mira-sales-pipeline/internal/pkg/logger"
)

// PricingService prices an order against the static city rate table. Cities
// absent from the table but present in the served-cities directory get the
// configured default rate; everything else is unsupported. Pricing itself is
// pure; I/O happens only at load/reload time.
type PricingService struct {
	mu     sync.RWMutex
	table  map[string]models.PricingEntry
	served map[string]bool

	defaultRate     int
	defaultMinHours int

	path   string
	logger *logger.Logger
}

type rateTableFile struct {
	DefaultRate     int                   `yaml:"default_rate"`
	DefaultMinHours int                   `yaml:"default_min_hours"`
	Cities          []models.PricingEntry `yaml:"cities"`
	ServedCities    []string              `yaml:"served_cities"`
}

func NewPricingService(cfg config.PricingConfig, log *logger.Logger) (*PricingService, error) {
	service := &PricingService{
		path:   cfg.TablePath,
		logger: log,
	}

	if err := service.Reload(); err != nil {
		return nil, err
	}

	return service, nil
}

// NewPricingServiceFromTable builds a pricing service from in-memory data.
func NewPricingServiceFromTable(entries []models.PricingEntry, servedCities []string, defaultRate, defaultMinHours int, log *logger.Logger) *PricingService {
	service := &PricingService{logger: log}
	service.install(entries, servedCities, defaultRate, defaultMinHours)
	return service
}

// Reload re-reads the rate table file. Safe to call while pricing is in use.
func (service *PricingService) Reload() error {
	data, err := os.ReadFile(service.path)
	if err != nil {
		return fmt.Errorf("failed to read rate table %s: %w", service.path, err)
	}

	var file rateTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rate table %s: %w", service.path, err)
	}

	if file.DefaultRate <= 0 {
		return fmt.Errorf("rate table %s: default_rate must be positive", service.path)
	}
	if file.DefaultMinHours <= 0 {
		file.DefaultMinHours = 1
	}

	service.install(file.Cities, file.ServedCities, file.DefaultRate, file.DefaultMinHours)

	service.logger.Info("Rate table loaded",
		"path", service.path,
		"cities", len(file.Cities),
		"served_cities", len(file.ServedCities),
		"default_rate", file.DefaultRate)

	return nil
}

func (service *PricingService) install(entries []models.PricingEntry, servedCities []string, defaultRate, defaultMinHours int) {
	table := make(map[string]models.PricingEntry, len(entries))
	for _, entry := range entries {
		table[normalizeCity(entry.City)] = entry
	}

	served := make(map[string]bool, len(servedCities))
	for _, city := range servedCities {
		served[normalizeCity(city)] = true
	}

	service.mu.Lock()
	service.table = table
	service.served = served
	service.defaultRate = defaultRate
	service.defaultMinHours = defaultMinHours
	service.mu.Unlock()
}

// Price computes a quote: total = people × max(hours, min_hours) × rate.
// Returns *models.MinimumNotMetError when hours fall below the city minimum
// and *models.CityUnsupportedError when the city is not served at all.
func (service *PricingService) Price(city string, hours, people int) (*models.Quote, error) {
	service.mu.RLock()
	defer service.mu.RUnlock()

	key := normalizeCity(city)

	entry, ok := service.table[key]
	if !ok {
		if !service.served[key] {
			return nil, &models.CityUnsupportedError{City: city}
		}
		entry = models.PricingEntry{
			City:        city,
			RatePerHour: service.defaultRate,
			MinHours:    service.defaultMinHours,
		}
	}

	if hours < entry.MinHours {
		return nil, &models.MinimumNotMetError{City: city, MinHours: entry.MinHours}
	}

	return &models.Quote{
		City:        city,
		People:      people,
		Hours:       hours,
		RatePerHour: entry.RatePerHour,
		Total:       people * hours * entry.RatePerHour,
	}, nil
}

// IsServed reports whether a city is known at all, by rate table or directory.
func (service *PricingService) IsServed(city string) bool {
	service.mu.RLock()
	defer service.mu.RUnlock()

	key := normalizeCity(city)
	if _, ok := service.table[key]; ok {
		return true
	}
	return service.served[key]
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
