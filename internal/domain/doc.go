// Package domain contains the core entities and value objects for pacer.
//
// This package is the innermost layer of the scheduler. It has no
// dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only scheduling rules and invariants.
//
// # Entities
//
//   - [WorkItem]: A unit of work submitted by a producer (reminder, request)
//   - [Batch]: An ordered group of work items executed together
//   - [ResourceState]: Usage, capacity and pressure of one tracked resource
//   - [Snapshot]: All resource states from one sampling tick
//   - [DegradationRecord]: History of degradation levels applied to an item
//   - [Event]: Observable scheduler event
//
// # Design Principles
//
// Domain values are:
//   - Free of infrastructure dependencies
//   - Generic over the producer payload type where they carry one
//   - Testable without mocks or external systems
package domain
