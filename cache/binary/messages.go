package binary

import (
	proto "github.com/gogo/protobuf/proto"
)

type Metadata struct {
	Version   int32  `protobuf:"varint,1,opt,name=version,proto3" json:"version,omitempty"`
	Timestamp int64  `protobuf:"varint,2,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	UserId    int32  `protobuf:"varint,3,opt,name=user_id,json=userId,proto3" json:"user_id,omitempty"`
	UserName  string `protobuf:"bytes,4,opt,name=user_name,json=userName,proto3" json:"user_name,omitempty"`
	Changeset int64  `protobuf:"varint,5,opt,name=changeset,proto3" json:"changeset,omitempty"`
}

func (m *Metadata) Reset()         { *m = Metadata{} }
func (m *Metadata) String() string { return proto.CompactTextString(m) }
func (*Metadata) ProtoMessage()    {}

type Node struct {
	Id       int64     `protobuf:"zigzag64,1,opt,name=id,proto3" json:"id,omitempty"`
	Lat      float64   `protobuf:"fixed64,2,opt,name=lat,proto3" json:"lat,omitempty"`
	Long     float64   `protobuf:"fixed64,3,opt,name=long,proto3" json:"long,omitempty"`
	Tags     []string  `protobuf:"bytes,4,rep,name=tags" json:"tags,omitempty"`
	Action   int32     `protobuf:"varint,5,opt,name=action,proto3" json:"action,omitempty"`
	Metadata *Metadata `protobuf:"bytes,6,opt,name=metadata" json:"metadata,omitempty"`
}

func (m *Node) Reset()         { *m = Node{} }
func (m *Node) String() string { return proto.CompactTextString(m) }
func (*Node) ProtoMessage()    {}

type Way struct {
	Id int64 `protobuf:"zigzag64,1,opt,name=id,proto3" json:"id,omitempty"`
	// Refs are delta encoded.
	Refs     []int64   `protobuf:"zigzag64,2,rep,packed,name=refs" json:"refs,omitempty"`
	Tags     []string  `protobuf:"bytes,3,rep,name=tags" json:"tags,omitempty"`
	Action   int32     `protobuf:"varint,4,opt,name=action,proto3" json:"action,omitempty"`
	Metadata *Metadata `protobuf:"bytes,5,opt,name=metadata" json:"metadata,omitempty"`
}

func (m *Way) Reset()         { *m = Way{} }
func (m *Way) String() string { return proto.CompactTextString(m) }
func (*Way) ProtoMessage()    {}

type Relation struct {
	Id          int64     `protobuf:"zigzag64,1,opt,name=id,proto3" json:"id,omitempty"`
	MemberIds   []int64   `protobuf:"zigzag64,2,rep,packed,name=member_ids,json=memberIds" json:"member_ids,omitempty"`
	MemberTypes []int32   `protobuf:"varint,3,rep,packed,name=member_types,json=memberTypes" json:"member_types,omitempty"`
	MemberRoles []string  `protobuf:"bytes,4,rep,name=member_roles,json=memberRoles" json:"member_roles,omitempty"`
	Tags        []string  `protobuf:"bytes,5,rep,name=tags" json:"tags,omitempty"`
	Action      int32     `protobuf:"varint,6,opt,name=action,proto3" json:"action,omitempty"`
	Metadata    *Metadata `protobuf:"bytes,7,opt,name=metadata" json:"metadata,omitempty"`
}

func (m *Relation) Reset()         { *m = Relation{} }
func (m *Relation) String() string { return proto.CompactTextString(m) }
func (*Relation) ProtoMessage()    {}

type Revision struct {
	Name      string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Source    string `protobuf:"bytes,2,opt,name=source,proto3" json:"source,omitempty"`
	Created   int64  `protobuf:"varint,3,opt,name=created,proto3" json:"created,omitempty"`
	Nodes     int64  `protobuf:"varint,4,opt,name=nodes,proto3" json:"nodes,omitempty"`
	Ways      int64  `protobuf:"varint,5,opt,name=ways,proto3" json:"ways,omitempty"`
	Relations int64  `protobuf:"varint,6,opt,name=relations,proto3" json:"relations,omitempty"`
}

func (m *Revision) Reset()         { *m = Revision{} }
func (m *Revision) String() string { return proto.CompactTextString(m) }
func (*Revision) ProtoMessage()    {}
