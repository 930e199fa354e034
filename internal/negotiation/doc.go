// Package negotiation implements the assignment state machine: create,
// quote, provider reject, respond to quote, delete, complete and dispute.
//
// Every operation follows the same steps:
//
//  1. Load the assignment (NOT_FOUND if unknown)
//  2. Check the actor's relationship to it (AUTHORIZATION)
//  3. Check the transition is legal from the loaded status (CONFLICT)
//  4. Commit through store.CompareAndSet expecting the loaded status
//
// Step 4 is what makes concurrent actions safe. If another request changed
// the status between steps 1 and 4, the commit fails with a CONFLICT whose
// Raced flag is set, and nothing is written. There are no in-process locks.
package negotiation
