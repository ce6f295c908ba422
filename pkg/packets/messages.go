package packets

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/beachbev/beachbev-site/pkg/packet"
)

// Credentials is the body of a successful login reply.
type Credentials struct {
	PwdToken string
	EID      uint64
	DeviceID uint32
	Msg      string
}

func (c Credentials) fields() packet.Fields {
	return packet.Fields{"pwdToken": c.PwdToken, "eID": c.EID, "deviceID": c.DeviceID, "msg": c.Msg}
}

func (c *Credentials) set(f packet.Fields) {
	c.PwdToken = f.String("pwdToken")
	c.EID = f.Uint64("eID")
	c.DeviceID = f.Uint32("deviceID")
	c.Msg = f.String("msg")
}

// A1 answers a password login (A3) or account creation (A0).
type A1 struct{ Credentials }

func (*A1) Schema() protoreflect.FullName { return SchemaName("A1") }

func (m *A1) MarshalFields() packet.Fields { return m.fields() }

func (m *A1) UnmarshalFields(f packet.Fields) error {
	m.set(f)
	return nil
}

// A9 answers a token login (A2).
type A9 struct{ Credentials }

func (*A9) Schema() protoreflect.FullName { return SchemaName("A9") }

func (m *A9) MarshalFields() packet.Fields { return m.fields() }

func (m *A9) UnmarshalFields(f packet.Fields) error {
	m.set(f)
	return nil
}

// A2 logs in with a saved token.
type A2 struct {
	EID      uint64
	DeviceID uint32
	PwdToken string
}

func (*A2) Schema() protoreflect.FullName { return SchemaName("A2") }

func (m *A2) MarshalFields() packet.Fields {
	return packet.Fields{"eID": m.EID, "deviceID": m.DeviceID, "pwdToken": m.PwdToken}
}

func (m *A2) UnmarshalFields(f packet.Fields) error {
	m.EID = f.Uint64("eID")
	m.DeviceID = f.Uint32("deviceID")
	m.PwdToken = f.String("pwdToken")
	return nil
}

// A3 logs in with a name and password.
type A3 struct {
	Name     string
	Pwd      string
	DeviceID uint32
}

func (*A3) Schema() protoreflect.FullName { return SchemaName("A3") }

func (m *A3) MarshalFields() packet.Fields {
	return packet.Fields{"name": m.Name, "pwd": m.Pwd, "deviceID": m.DeviceID}
}

func (m *A3) UnmarshalFields(f packet.Fields) error {
	m.Name = f.String("name")
	m.Pwd = f.String("pwd")
	m.DeviceID = f.Uint32("deviceID")
	return nil
}

// B0 asks the server to (re)send a verification email to Email.
type B0 struct {
	Email string
}

func (*B0) Schema() protoreflect.FullName { return SchemaName("B0") }

func (m *B0) MarshalFields() packet.Fields { return packet.Fields{"email": m.Email} }

func (m *B0) UnmarshalFields(f packet.Fields) error {
	m.Email = f.String("email")
	return nil
}

// B1 answers B0.
type B1 struct {
	Success bool
	Msg     string
}

func (*B1) Schema() protoreflect.FullName { return SchemaName("B1") }

func (m *B1) MarshalFields() packet.Fields { return packet.Fields{"success": m.Success, "msg": m.Msg} }

func (m *B1) UnmarshalFields(f packet.Fields) error {
	m.Success = f.Bool("success")
	m.Msg = f.String("msg")
	return nil
}

// B5 is both the email query (sent empty) and its answer.
type B5 struct {
	VerifiedEmail   string
	UnverifiedEmail string
}

func (*B5) Schema() protoreflect.FullName { return SchemaName("B5") }

func (m *B5) MarshalFields() packet.Fields {
	return packet.Fields{"verifiedEmail": m.VerifiedEmail, "unverifiedEmail": m.UnverifiedEmail}
}

func (m *B5) UnmarshalFields(f packet.Fields) error {
	m.VerifiedEmail = f.String("verifiedEmail")
	m.UnverifiedEmail = f.String("unverifiedEmail")
	return nil
}

// C3 carries the logged in employee's display name.
type C3 struct {
	Name string
}

func (*C3) Schema() protoreflect.FullName { return SchemaName("C3") }

func (m *C3) MarshalFields() packet.Fields { return packet.Fields{"name": m.Name} }

func (m *C3) UnmarshalFields(f packet.Fields) error {
	m.Name = f.String("name")
	return nil
}

// D1 carries session-scoped storage credentials and the caller's folder.
type D1 struct {
	FolderObjKey string
	AccessKeyID  string
	AccessKey    string
	SessionKey   string
	Msg          string
}

func (*D1) Schema() protoreflect.FullName { return SchemaName("D1") }

func (m *D1) MarshalFields() packet.Fields {
	return packet.Fields{
		"folderObjKey": m.FolderObjKey,
		"accessKeyID":  m.AccessKeyID,
		"accessKey":    m.AccessKey,
		"sessionKey":   m.SessionKey,
		"msg":          m.Msg,
	}
}

func (m *D1) UnmarshalFields(f packet.Fields) error {
	m.FolderObjKey = f.String("folderObjKey")
	m.AccessKeyID = f.String("accessKeyID")
	m.AccessKey = f.String("accessKey")
	m.SessionKey = f.String("sessionKey")
	m.Msg = f.String("msg")
	return nil
}

// HasCredentials reports whether the server granted storage access.
func (m *D1) HasCredentials() bool {
	return m.AccessKeyID != "" && m.AccessKey != ""
}

// D4 answers D3.
type D4 struct {
	HasResume bool
}

func (*D4) Schema() protoreflect.FullName { return SchemaName("D4") }

func (m *D4) MarshalFields() packet.Fields { return packet.Fields{"hasResume": m.HasResume} }

func (m *D4) UnmarshalFields(f packet.Fields) error {
	m.HasResume = f.Bool("hasResume")
	return nil
}

// E1 lists accepted and pending candidates.
type E1 struct {
	Success        bool
	AcceptedEIDs   []uint64
	UnacceptedEIDs []uint64
	Msg            string
}

func (*E1) Schema() protoreflect.FullName { return SchemaName("E1") }

func (m *E1) MarshalFields() packet.Fields {
	return packet.Fields{
		"success":        m.Success,
		"acceptedEIDs":   m.AcceptedEIDs,
		"unacceptedEIDs": m.UnacceptedEIDs,
		"msg":            m.Msg,
	}
}

func (m *E1) UnmarshalFields(f packet.Fields) error {
	m.Success = f.Bool("success")
	m.AcceptedEIDs = f.Uint64s("acceptedEIDs")
	m.UnacceptedEIDs = f.Uint64s("unacceptedEIDs")
	m.Msg = f.String("msg")
	return nil
}

// E2 sets a candidate's acceptance state.
type E2 struct {
	EID    uint64
	AState uint32
}

func (*E2) Schema() protoreflect.FullName { return SchemaName("E2") }

func (m *E2) MarshalFields() packet.Fields { return packet.Fields{"eID": m.EID, "aState": m.AState} }

func (m *E2) UnmarshalFields(f packet.Fields) error {
	m.EID = f.Uint64("eID")
	m.AState = f.Uint32("aState")
	return nil
}

// E3 answers E2.
type E3 struct {
	Success bool
	EID     uint64
	Msg     string
}

func (*E3) Schema() protoreflect.FullName { return SchemaName("E3") }

func (m *E3) MarshalFields() packet.Fields {
	return packet.Fields{"success": m.Success, "eID": m.EID, "msg": m.Msg}
}

func (m *E3) UnmarshalFields(f packet.Fields) error {
	m.Success = f.Bool("success")
	m.EID = f.Uint64("eID")
	m.Msg = f.String("msg")
	return nil
}
