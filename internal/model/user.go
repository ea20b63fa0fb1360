package model

import "time"

// User represents an account as stored in the `users` table. A user owns
// every contact whose user_id matches its ID.
//
// Fields:
//  ID           – opaque identifier (uuid).
//  Name         – display name given at signup.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
