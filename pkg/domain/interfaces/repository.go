package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Memory() MemoryRepository
	Message() MessageRepository
	Account() AccountRepository

	Close() error
}
