// Package contracts defines the interface contracts between the launchindex
// core and its external collaborators.
//
// This package follows the Interface Segregation Principle (ISP) by providing
// small, focused interfaces that define clear contracts between components.
// Each interface represents a specific capability without exposing
// implementation details.
//
// Interfaces:
//   - LedgerSource: registration-event queries against the chain
//   - AggregatorGateway: batched read queries against the aggregator backend
//   - LaunchDetector: pre-launch detection for the aggregator deployment
//   - InstanceRegistry: per-instance registry lookups (fallback path)
//   - ContractAdapter: per-contract-family reads (fallback path)
//   - Bus: in-process publish/subscribe for lifecycle signals
package contracts
