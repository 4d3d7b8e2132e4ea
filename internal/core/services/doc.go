// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services never open files, sockets or databases themselves; every
// store and external collaborator is handed in through a constructor.
package services
