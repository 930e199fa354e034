// Package domain holds the assignment brokerage types shared by every other
// internal package.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import domain; domain imports nothing internal.
//
// Key design constraints:
//   - Status, PaymentStatus, TransactionStatus and Role are closed sets;
//     values enter through Parse* functions and nowhere else
//   - Money is github.com/shopspring/decimal, never float64
//   - Legal state transitions are declared once, in transition.go
//   - All JSON tags use snake_case
package domain
