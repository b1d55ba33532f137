// Package jwt signs and verifies the two token kinds exchanged between the
// reference collaborators: flow assertions minted by the flow host and ID
// tokens issued by the backend.
package jwt
