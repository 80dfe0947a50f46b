package soap

import (
	"encoding/json"
	"fmt"
)

// Namespaces carried in the _jsns field of requests.
const (
	NSMail    = "urn:zimbraMail"
	NSAccount = "urn:zimbraAccount"
	NSZimbra  = "urn:zimbra"
)

// Ptr returns a pointer to v. It keeps partial records readable in code
// that builds them.
func Ptr[T any](v T) *T {
	return &v
}

// Content is the {"_content": "..."} wrapper used for text nodes.
type Content struct {
	Value string `json:"_content"`
}

// Attr is a single {n, _content} contact attribute sent on create/modify.
type Attr struct {
	Name    string `json:"n"`
	Content string `json:"_content"`
}

// ImagePart describes the attachment holding a contact picture.
type ImagePart struct {
	Part        string `json:"part"`
	ContentType string `json:"ct,omitempty"`
	Size        int64  `json:"s,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Attrs is the free-form attribute map of a contact. Text attributes land in
// Values; the image attribute is an attachment object and lands in Image.
// Values of any other shape are dropped.
type Attrs struct {
	Values map[string]string
	Image  *ImagePart
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding contact attributes: %w", err)
	}

	a.Values = make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			a.Values[key] = s
			continue
		}
		if key == "image" {
			var img ImagePart
			if err := json.Unmarshal(value, &img); err == nil && img.Part != "" {
				a.Image = &img
			}
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Attrs) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(a.Values)+1)
	for k, v := range a.Values {
		out[k] = v
	}
	if a.Image != nil {
		out["image"] = a.Image
	}
	return json.Marshal(out)
}

// ContactRecord is a contact as returned by searches, create/modify
// responses and notifications. In notifications only the changed fields are
// present, hence the pointers.
type ContactRecord struct {
	ID        string  `json:"id"`
	Parent    *string `json:"l,omitempty"`
	Date      int64   `json:"d,omitempty"`
	Revision  int     `json:"rev,omitempty"`
	FileAsStr *string `json:"fileAsStr,omitempty"`
	Tags      *string `json:"t,omitempty"`
	TagNames  *string `json:"tn,omitempty"`
	Attrs     *Attrs  `json:"_attrs,omitempty"`
}

// GrantRecord is a single ACL entry.
type GrantRecord struct {
	GranteeID   string `json:"zid,omitempty"`
	GranteeType string `json:"gt,omitempty"`
	GranteeName string `json:"d,omitempty"`
	Perm        string `json:"perm,omitempty"`
}

// ACL is a folder's sharing list.
type ACL struct {
	Grants []GrantRecord `json:"grant,omitempty"`
}

// FolderRecord is a folder or a mountpoint (link). GetFolder returns a tree
// of them; notifications carry partial records.
type FolderRecord struct {
	ID            string         `json:"id"`
	Name          *string        `json:"name,omitempty"`
	AbsFolderPath *string        `json:"absFolderPath,omitempty"`
	Parent        *string        `json:"l,omitempty"`
	View          *string        `json:"view,omitempty"`
	Color         *int           `json:"color,omitempty"`
	Count         *int           `json:"n,omitempty"`
	Owner         *string        `json:"owner,omitempty"`
	OwnerID       string         `json:"zid,omitempty"`
	RemoteID      string         `json:"rid,omitempty"`
	Perm          *string        `json:"perm,omitempty"`
	ACL           *ACL           `json:"acl,omitempty"`
	Broken        *bool          `json:"broken,omitempty"`
	Folders       []FolderRecord `json:"folder,omitempty"`
	Links         []FolderRecord `json:"link,omitempty"`
}

// Changes lists created or modified items of a notification.
type Changes struct {
	Contacts []ContactRecord `json:"cn,omitempty"`
	Folders  []FolderRecord  `json:"folder,omitempty"`
	Links    []FolderRecord  `json:"link,omitempty"`
}

// Deleted lists ids removed since the previous notification, comma-joined.
type Deleted struct {
	IDs string `json:"id"`
}

// Notification is one server push block. Seq increases monotonically
// within a session.
type Notification struct {
	Seq      int      `json:"seq"`
	Created  *Changes `json:"created,omitempty"`
	Modified *Changes `json:"modified,omitempty"`
	Deleted  *Deleted `json:"deleted,omitempty"`
}

// Search

type SearchRequest struct {
	JSNS   string `json:"_jsns"`
	Types  string `json:"types"`
	Query  string `json:"query"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	SortBy string `json:"sortBy"`
}

type SearchResponse struct {
	Contacts []ContactRecord `json:"cn,omitempty"`
	More     bool            `json:"more"`
	Offset   int             `json:"offset"`
	SortBy   string          `json:"sortBy,omitempty"`
}

// Contacts

type NewContact struct {
	Folder string `json:"l"`
	Tags   string `json:"t,omitempty"`
	Attrs  []Attr `json:"a"`
}

type CreateContactRequest struct {
	JSNS    string     `json:"_jsns"`
	Contact NewContact `json:"cn"`
}

type CreateContactResponse struct {
	Contacts []ContactRecord `json:"cn"`
}

type ModifiedContact struct {
	ID    string `json:"id"`
	Attrs []Attr `json:"a"`
}

type ModifyContactRequest struct {
	JSNS    string          `json:"_jsns"`
	Force   string          `json:"force"`
	Replace string          `json:"replace"`
	Contact ModifiedContact `json:"cn"`
}

type ModifyContactResponse struct {
	Contacts []ContactRecord `json:"cn"`
}

// Contact action operations.
const (
	ContactOpMove   = "move"
	ContactOpDelete = "delete"
	ContactOpTag    = "tag"
	ContactOpUntag  = "!tag"
)

type ContactActionSpec struct {
	Op      string `json:"op"`
	IDs     string `json:"id"`
	Folder  string `json:"l,omitempty"`
	TagName string `json:"tn,omitempty"`
}

type ContactActionRequest struct {
	JSNS   string            `json:"_jsns"`
	Action ContactActionSpec `json:"action"`
}

type ActionResult struct {
	IDs string `json:"id"`
	Op  string `json:"op"`
}

type ContactActionResponse struct {
	Action ActionResult `json:"action"`
}

// Folders

type NewFolder struct {
	Name   string `json:"name"`
	Parent string `json:"l"`
	View   string `json:"view"`
	Color  *int   `json:"color,omitempty"`
}

type CreateFolderRequest struct {
	JSNS   string    `json:"_jsns"`
	Folder NewFolder `json:"folder"`
}

type CreateFolderResponse struct {
	Folders []FolderRecord `json:"folder"`
}

// Folder action operations.
const (
	FolderOpMove   = "move"
	FolderOpDelete = "delete"
	FolderOpRename = "rename"
	FolderOpUpdate = "update"
	FolderOpEmpty  = "empty"
	FolderOpRevoke = "!grant"
)

type FolderActionSpec struct {
	Op        string `json:"op"`
	ID        string `json:"id"`
	Parent    string `json:"l,omitempty"`
	Name      string `json:"name,omitempty"`
	Color     *int   `json:"color,omitempty"`
	Recursive *bool  `json:"recursive,omitempty"`
	GranteeID string `json:"zid,omitempty"`
}

type FolderActionRequest struct {
	JSNS   string           `json:"_jsns"`
	Action FolderActionSpec `json:"action"`
}

type FolderActionResponse struct {
	Action ActionResult `json:"action"`
}

type FolderSelector struct {
	Path string `json:"path,omitempty"`
	ID   string `json:"l,omitempty"`
}

type GetFolderRequest struct {
	JSNS   string          `json:"_jsns"`
	View   string          `json:"view,omitempty"`
	Tree   bool            `json:"tr,omitempty"`
	Folder *FolderSelector `json:"folder,omitempty"`
}

type GetFolderResponse struct {
	Folders []FolderRecord `json:"folder"`
}

// Export

type ExportContactsRequest struct {
	JSNS        string `json:"_jsns"`
	ContentType string `json:"ct"`
	CSVFormat   string `json:"csvfmt,omitempty"`
	Folder      string `json:"l,omitempty"`
}

type ExportContactsResponse struct {
	Content []Content `json:"content"`
}

// Mountpoints

type NewLink struct {
	Parent   string `json:"l"`
	Name     string `json:"name"`
	View     string `json:"view"`
	OwnerID  string `json:"zid"`
	RemoteID string `json:"rid"`
	Color    *int   `json:"color,omitempty"`
}

type CreateMountpointRequest struct {
	JSNS string  `json:"_jsns"`
	Link NewLink `json:"link"`
}

type CreateMountpointResponse struct {
	Links []FolderRecord `json:"link"`
}

type BatchRequest struct {
	JSNS             string                    `json:"_jsns"`
	OnError          string                    `json:"onerror"`
	CreateMountpoint []CreateMountpointRequest `json:"CreateMountpointRequest,omitempty"`
}

type BatchResponse struct {
	CreateMountpoint []CreateMountpointResponse `json:"CreateMountpointResponse,omitempty"`
	Faults           []FaultBody                `json:"Fault,omitempty"`
}

// Session

type NoOpRequest struct {
	JSNS    string `json:"_jsns"`
	Wait    int    `json:"wait,omitempty"`
	Timeout int64  `json:"timeout,omitempty"`
}

type NoOpResponse struct {
	WaitDisallowed bool `json:"waitDisallowed,omitempty"`
}

type AccountSelector struct {
	By    string `json:"by"`
	Value string `json:"_content"`
}

type AuthRequest struct {
	JSNS     string          `json:"_jsns"`
	Account  AccountSelector `json:"account"`
	Password Content         `json:"password"`
}

type AuthResponse struct {
	AuthToken []Content `json:"authToken"`
	Lifetime  int64     `json:"lifetime"`
}
