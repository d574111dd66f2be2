package service

import "errors"

// カスタムエラー定義
var (
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomIDGenerationFailed = errors.New("failed to generate unique room ID after multiple attempts")
	ErrInvalidWireframe       = errors.New("invalid wireframe file")
)
