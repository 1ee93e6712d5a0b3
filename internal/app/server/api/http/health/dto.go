package health

import "time"

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status  string    `json:"status" example:"OK" doc:"Состояние сервиса"`
	Version string    `json:"version" example:"1.0.0" doc:"Версия API"`
	Time    time.Time `json:"time" doc:"Время сервера"`
}
