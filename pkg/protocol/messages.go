package protocol

import (
	"bytes"
	"fmt"
)

// Tag identifies a message variant on the wire. The tag space is closed and
// known at compile time; see spec.md §4.2 for the authoritative table.
type Tag uint16

const (
	TagUnknown     Tag = 0
	TagInit        Tag = 1
	TagPlayer      Tag = 2
	TagCap         Tag = 3
	TagGame        Tag = 4
	TagTag         Tag = 5
	TagConnect     Tag = 6
	TagDisconnect  Tag = 7
	TagCostume     Tag = 8
	TagMoon        Tag = 9
	TagCapture     Tag = 10
	TagChangeStage Tag = 11
)

func (t Tag) String() string {
	switch t {
	case TagUnknown:
		return "Unknown"
	case TagInit:
		return "Init"
	case TagPlayer:
		return "Player"
	case TagCap:
		return "Cap"
	case TagGame:
		return "Game"
	case TagTag:
		return "Tag"
	case TagConnect:
		return "Connect"
	case TagDisconnect:
		return "Disconnect"
	case TagCostume:
		return "Costume"
	case TagMoon:
		return "Moon"
	case TagCapture:
		return "Capture"
	case TagChangeStage:
		return "ChangeStage"
	default:
		return fmt.Sprintf("Tag(%d)", uint16(t))
	}
}

// Message is implemented by every decoded payload variant, including the
// zero-payload ones (UnknownMessage, TagMessage, DisconnectMessage below).
type Message interface {
	Tag() Tag
	Encode() ([]byte, error)
}

// Decode parses a payload according to tag, dispatching on a small table
// keyed by tag id. Unknown and tag-0 payloads are consumed and discarded,
// yielding UnknownMessage per spec.md §4.1.
func Decode(tag Tag, payload []byte) (Message, error) {
	r := bytes.NewReader(payload)

	switch tag {
	case TagInit:
		return decodeInit(r)
	case TagPlayer:
		return decodePlayer(r)
	case TagCap:
		return decodeCap(r)
	case TagGame:
		return decodeGame(r)
	case TagTag:
		return TagMessage{}, nil
	case TagConnect:
		return decodeConnect(r)
	case TagDisconnect:
		return DisconnectMessage{}, nil
	case TagCostume:
		return decodeCostume(r)
	case TagMoon:
		return decodeMoon(r)
	case TagCapture:
		return decodeCapture(r)
	case TagChangeStage:
		return decodeChangeStage(r)
	default:
		return UnknownMessage{}, nil
	}
}

// region: Unknown / Tag / Disconnect (no payload processed)

// UnknownMessage represents any tag outside the enumerated set, or tag 0.
type UnknownMessage struct{}

func (UnknownMessage) Tag() Tag              { return TagUnknown }
func (UnknownMessage) Encode() ([]byte, error) { return nil, nil }

// TagMessage is relayed opaquely; this server never produces its payload.
type TagMessage struct{}

func (TagMessage) Tag() Tag                { return TagTag }
func (TagMessage) Encode() ([]byte, error) { return nil, nil }

// DisconnectMessage carries no payload; clients may not send it after the
// handshake (it is server-synthesised on teardown).
type DisconnectMessage struct{}

func (DisconnectMessage) Tag() Tag                { return TagDisconnect }
func (DisconnectMessage) Encode() ([]byte, error) { return nil, nil }

// endregion

// region: Init

// InitMessage announces the server's configured player capacity.
type InitMessage struct {
	MaxPlayers uint16
}

func (InitMessage) Tag() Tag { return TagInit }

func (m InitMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint16(&buf, m.MaxPlayers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeInit(r *bytes.Reader) (Message, error) {
	maxPlayers, err := readUint16(r)
	if err != nil {
		return nil, fmt.Errorf("decode Init: %w", err)
	}
	return InitMessage{MaxPlayers: maxPlayers}, nil
}

// endregion

// region: Player (motion)

// PlayerMessage carries a player's position, orientation, animation state
// and current action. act/subact are i16 (frozen per spec.md §9).
type PlayerMessage struct {
	Position    Vec3
	Rotation    Quat
	AnimWeights [6]float32
	Act         int16
	SubAct      int16
}

func (PlayerMessage) Tag() Tag { return TagPlayer }

func (m PlayerMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeVec3(&buf, m.Position); err != nil {
		return nil, err
	}
	if err := writeQuat(&buf, m.Rotation); err != nil {
		return nil, err
	}
	if err := writeAnimWeights(&buf, m.AnimWeights); err != nil {
		return nil, err
	}
	if err := writeInt16(&buf, m.Act); err != nil {
		return nil, err
	}
	if err := writeInt16(&buf, m.SubAct); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePlayer(r *bytes.Reader) (Message, error) {
	pos, err := readVec3(r)
	if err != nil {
		return nil, fmt.Errorf("decode Player: %w", err)
	}
	rot, err := readQuat(r)
	if err != nil {
		return nil, fmt.Errorf("decode Player: %w", err)
	}
	weights, err := readAnimWeights(r)
	if err != nil {
		return nil, fmt.Errorf("decode Player: %w", err)
	}
	act, err := readInt16(r)
	if err != nil {
		return nil, fmt.Errorf("decode Player: %w", err)
	}
	subact, err := readInt16(r)
	if err != nil {
		return nil, fmt.Errorf("decode Player: %w", err)
	}
	return PlayerMessage{Position: pos, Rotation: rot, AnimWeights: weights, Act: act, SubAct: subact}, nil
}

// endregion

// region: Cap

// CapMessage carries the thrown-cap entity's transform and animation.
type CapMessage struct {
	Position Vec3
	Rotation Quat
	CapOut   bool
	CapAnim  FixedString
}

func (CapMessage) Tag() Tag { return TagCap }

func (m CapMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeVec3(&buf, m.Position); err != nil {
		return nil, err
	}
	if err := writeQuat(&buf, m.Rotation); err != nil {
		return nil, err
	}
	if err := writeBool(&buf, m.CapOut); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, m.CapAnim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCap(r *bytes.Reader) (Message, error) {
	pos, err := readVec3(r)
	if err != nil {
		return nil, fmt.Errorf("decode Cap: %w", err)
	}
	rot, err := readQuat(r)
	if err != nil {
		return nil, fmt.Errorf("decode Cap: %w", err)
	}
	out, err := readBool(r)
	if err != nil {
		return nil, fmt.Errorf("decode Cap: %w", err)
	}
	anim, err := readFixedString(r, 0x30)
	if err != nil {
		return nil, fmt.Errorf("decode Cap: %w", err)
	}
	return CapMessage{Position: pos, Rotation: rot, CapOut: out, CapAnim: anim}, nil
}

// endregion

// region: Game

// GameMessage reports the sender's dimensionality, scenario and stage.
type GameMessage struct {
	Is2D     bool
	Scenario uint8
	Stage    FixedString
}

func (GameMessage) Tag() Tag { return TagGame }

func (m GameMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBool(&buf, m.Is2D); err != nil {
		return nil, err
	}
	if err := writeUint8(&buf, m.Scenario); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, m.Stage); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGame(r *bytes.Reader) (Message, error) {
	is2d, err := readBool(r)
	if err != nil {
		return nil, fmt.Errorf("decode Game: %w", err)
	}
	scenario, err := readUint8(r)
	if err != nil {
		return nil, fmt.Errorf("decode Game: %w", err)
	}
	stage, err := readFixedString(r, 0x20)
	if err != nil {
		return nil, fmt.Errorf("decode Game: %w", err)
	}
	return GameMessage{Is2D: is2d, Scenario: scenario, Stage: stage}, nil
}

// endregion

// region: Connect

// ConnectionType distinguishes a fresh join from a reconnect.
type ConnectionType uint32

const (
	ConnectionInit      ConnectionType = 0
	ConnectionReconnect ConnectionType = 1
)

// ConnectMessage is the client's post-handshake identification frame.
type ConnectMessage struct {
	ConnectionType ConnectionType
	MaxPlayers     uint16
	Nickname       FixedString
}

func (ConnectMessage) Tag() Tag { return TagConnect }

func (m ConnectMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, int32(m.ConnectionType)); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, m.MaxPlayers); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, m.Nickname); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeConnect(r *bytes.Reader) (Message, error) {
	ct, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("decode Connect: %w", err)
	}
	maxPlayers, err := readUint16(r)
	if err != nil {
		return nil, fmt.Errorf("decode Connect: %w", err)
	}
	nickname, err := readFixedString(r, 0x20)
	if err != nil {
		return nil, fmt.Errorf("decode Connect: %w", err)
	}
	return ConnectMessage{
		ConnectionType: ConnectionType(uint32(ct)),
		MaxPlayers:     maxPlayers,
		Nickname:       nickname,
	}, nil
}

// endregion

// region: Costume

// CostumeMessage reports the sender's equipped body/cap cosmetics.
type CostumeMessage struct {
	Body FixedString
	Cap  FixedString
}

func (CostumeMessage) Tag() Tag { return TagCostume }

func (m CostumeMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFixedString(&buf, m.Body); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, m.Cap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCostume(r *bytes.Reader) (Message, error) {
	body, err := readFixedString(r, 0x20)
	if err != nil {
		return nil, fmt.Errorf("decode Costume: %w", err)
	}
	cap, err := readFixedString(r, 0x20)
	if err != nil {
		return nil, fmt.Errorf("decode Costume: %w", err)
	}
	return CostumeMessage{Body: body, Cap: cap}, nil
}

// endregion

// region: Moon (tag 9, "Shine/Moon" on the wire)

// MoonMessage reports a collected objective id.
type MoonMessage struct {
	ID      int32
	IsGrand bool
}

func (MoonMessage) Tag() Tag { return TagMoon }

func (m MoonMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, m.ID); err != nil {
		return nil, err
	}
	if err := writeBool(&buf, m.IsGrand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMoon(r *bytes.Reader) (Message, error) {
	id, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("decode Moon: %w", err)
	}
	isGrand, err := readBool(r)
	if err != nil {
		return nil, fmt.Errorf("decode Moon: %w", err)
	}
	return MoonMessage{ID: id, IsGrand: isGrand}, nil
}

// endregion

// region: Capture

// CaptureMessage reports the model name of a captured enemy/object.
type CaptureMessage struct {
	Model FixedString
}

func (CaptureMessage) Tag() Tag { return TagCapture }

func (m CaptureMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFixedString(&buf, m.Model); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCapture(r *bytes.Reader) (Message, error) {
	model, err := readFixedString(r, 0x20)
	if err != nil {
		return nil, fmt.Errorf("decode Capture: %w", err)
	}
	return CaptureMessage{Model: model}, nil
}

// endregion

// region: ChangeStage

// ChangeStageMessage warps the recipient to another stage. Field order on
// the wire is stage, id, scenario, sub_scenario (see spec.md §4.2/§9 — the
// source disagreed between revisions, this is the frozen order).
type ChangeStageMessage struct {
	Stage       FixedString
	ID          FixedString
	Scenario    int8
	SubScenario uint8
}

func (ChangeStageMessage) Tag() Tag { return TagChangeStage }

func (m ChangeStageMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFixedString(&buf, m.Stage); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, m.ID); err != nil {
		return nil, err
	}
	if err := writeInt8(&buf, m.Scenario); err != nil {
		return nil, err
	}
	if err := writeUint8(&buf, m.SubScenario); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeChangeStage(r *bytes.Reader) (Message, error) {
	stage, err := readFixedString(r, 0x30)
	if err != nil {
		return nil, fmt.Errorf("decode ChangeStage: %w", err)
	}
	id, err := readFixedString(r, 0x10)
	if err != nil {
		return nil, fmt.Errorf("decode ChangeStage: %w", err)
	}
	scenario, err := readInt8(r)
	if err != nil {
		return nil, fmt.Errorf("decode ChangeStage: %w", err)
	}
	subScenario, err := readUint8(r)
	if err != nil {
		return nil, fmt.Errorf("decode ChangeStage: %w", err)
	}
	return ChangeStageMessage{Stage: stage, ID: id, Scenario: scenario, SubScenario: subScenario}, nil
}

// endregion
