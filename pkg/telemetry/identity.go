// Anonymous device identity for HelixScreen telemetry
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"helixscreen/pkg/errors"
)

const identityFile = "identity.json"

// identity is persisted on first run. The raw UUID never leaves the
// device: the transmitted id is a double hash salted with a local
// random value, so events cannot be correlated back even if the
// endpoint's data leaks.
type identity struct {
	UUID string `json:"uuid"`
	Salt string `json:"salt"`
}

// DeviceID derives the transmitted id: SHA-256(SHA-256(uuid) || salt).
func (id *identity) DeviceID() string {
	inner := sha256.Sum256([]byte(id.UUID))
	outer := sha256.New()
	outer.Write(inner[:])
	outer.Write([]byte(id.Salt))
	return hex.EncodeToString(outer.Sum(nil))
}

// loadOrCreateIdentity reads the persisted identity, generating and
// saving a fresh one on first run.
func loadOrCreateIdentity(dataDir string) (*identity, error) {
	path := filepath.Join(dataDir, identityFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var id identity
		if err := json.Unmarshal(data, &id); err == nil && id.UUID != "" && id.Salt != "" {
			return &id, nil
		}
		// Corrupt identity file: regenerate below.
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.IOError("salt generation", err)
	}
	id := &identity{
		UUID: uuid.New().String(),
		Salt: hex.EncodeToString(salt),
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.IOError("telemetry dir", err)
	}
	data, err = json.MarshalIndent(id, "", "  ")
	if err != nil {
		return nil, errors.IOError("identity marshal", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, errors.IOError("identity write", err)
	}
	return id, nil
}
