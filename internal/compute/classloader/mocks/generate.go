package mocks

// Mock implementations used by class loader and executor tests
//go:generate mockgen -destination=./mock_classloader.go -package=mocks "github.com/G-Research/armada-compute/internal/compute/classloader" ClassResolver,DeploymentUnitResolver,UnitCode
