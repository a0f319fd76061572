// Package rules compiles housekeeping rules from configuration and
// implements their actions. Matching uses dockerignore-style patterns
// against target-relative paths; actions run against the matched path.
package rules
