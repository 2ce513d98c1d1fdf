package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Editing layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOccupied      = "E_OCCUPIED"
	ErrBlocked       = "E_BLOCKED"
	ErrVoxelLimit    = "E_VOXEL_LIMIT"
	ErrZeroDistance  = "E_ZERO_DISTANCE"
	ErrDetached      = "E_DETACHED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrOccupied:        {},
	ErrBlocked:         {},
	ErrVoxelLimit:      {},
	ErrZeroDistance:    {},
	ErrDetached:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
