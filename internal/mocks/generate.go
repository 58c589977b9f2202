package mocks

//go:generate mockgen -source=../port/session/session.go -destination=mock_session.go -package=mocks
//go:generate mockgen -source=../port/metrics/metrics.go -destination=mock_metrics.go -package=mocks
