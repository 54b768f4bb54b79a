package usecase

// UseCases bundles the use case entry points used by the HTTP controller
// and the local chat command.
type UseCases struct {
	Auth *AuthUseCase
	Chat *ChatUseCase
}

func New(auth *AuthUseCase, chat *ChatUseCase) *UseCases {
	return &UseCases{
		Auth: auth,
		Chat: chat,
	}
}
