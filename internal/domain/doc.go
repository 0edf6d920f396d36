// Package domain defines core data models shared across the engine.
// It contains plain types (wire/state), the error taxonomy, and contracts
// (interfaces) only.
package domain
