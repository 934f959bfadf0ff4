package service

import "MDK/internal/domain/models"

// Metric is a stateless risk/return statistic over a price series.
type Metric interface {
	Name() string
	Calculate(series models.PriceSeries) float64
}
