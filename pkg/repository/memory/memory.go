package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = goerr.New("not found")

// ErrEmailTaken is returned when registering an email that already has an account
var ErrEmailTaken = goerr.New("email already registered")

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory repository used by tests and the local chat
// command. It mirrors the Firestore backend's semantics, including
// per-account partitioning of memories and messages.
type Memory struct {
	memory  *memoryRepository
	message *messageRepository
	account *accountRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		memory:  newMemoryRepository(),
		message: newMessageRepository(),
		account: newAccountRepository(),
	}
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Account() interfaces.AccountRepository {
	return m.account
}

func (m *Memory) Close() error {
	return nil
}
