package models

// Requests for the serving endpoints. Tags drive creasty/defaults and validator.

type CreateExperimentRequest struct {
	ProjectID   string                 `json:"project_id"`
	UserID      string                 `json:"user_id"`
	ModelName   string                 `json:"model_name" validate:"required"`
	ModelConfig map[string]interface{} `json:"model_config"`
	Symbol      string                 `json:"symbol" validate:"required_without=Rows"`
	From        string                 `json:"from"`
	To          string                 `json:"to"`
	Rows        []Candle               `json:"rows" validate:"required_without=Symbol"`
}

type InferenceRequest struct {
	ID   string   `param:"id" validate:"required"`
	Rows []Candle `json:"rows" validate:"required,min=1"`
}

type ForecastRequest struct {
	ID    string   `param:"id" validate:"required"`
	Steps int      `query:"steps" json:"steps" default:"1" validate:"gte=1,lte=1000"`
	Rows  []Candle `json:"rows"`
}

type MetricRequest struct {
	Name   string    `param:"name" validate:"required"`
	Prices []float64 `json:"prices" validate:"required,min=2"`
	Dates  []string  `json:"dates"`
}
