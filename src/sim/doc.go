// Package sim is a sequential discrete-event kernel.
//
// Entities register under an Address and receive payloads through Deliver.
// Every interaction, including a node talking to itself, goes through
// Schedule; the kernel pops events in (time, sequence) order, so a run is fully
// determined by the order in which events were scheduled. Nothing can be
// unscheduled: handlers re-check their own state when a timer fires.
package sim
