// Package admission defines the core types shared across the rank checker:
// fetch attempts, raw pages, applicant records, and ranked rosters.
package admission
