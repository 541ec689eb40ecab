package mocks

// Mock implementations used by management tests
//go:generate mockgen -destination=./mock_management.go -package=mocks "github.com/G-Research/armada-compute/internal/compute/management" RemoteJobs
