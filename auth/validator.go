package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"parley/errors"
	"parley/protocol"
)

var validate = validator.New()

type registerInput struct {
	Username    string `validate:"required,min=2,max=32,excludesall= "`
	Password    string `validate:"required,min=8,max=72"`
	DisplayName string `validate:"max=64"` // empty falls back to the username
}

// ValidateRegister checks registration input before any hashing work.
func ValidateRegister(req protocol.RegisterRequest) error {
	in := registerInput{
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

type createRoomInput struct {
	Name string `validate:"required,min=1,max=64"`
}

// ValidateCreateRoom requires a non-empty trimmed room name.
func ValidateCreateRoom(req protocol.CreateRoomRequest) error {
	in := createRoomInput{Name: strings.TrimSpace(req.Name)}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

// ValidateChatMessage rejects a message with neither text nor image.
func ValidateChatMessage(req protocol.ChatMessageRequest) error {
	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		return fmt.Errorf("%w: message needs text or an image", errors.ErrInvalidInput)
	}
	return nil
}
