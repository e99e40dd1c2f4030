// Package binary serializes entity graph elements for the revision cache.
package binary

import (
	"time"

	proto "github.com/gogo/protobuf/proto"
	osm "github.com/omniscale/go-osm"

	"github.com/omniscale/aixmdiff/element"
)

func MarshalNode(node *element.Node) ([]byte, error) {
	pbfNode := &Node{
		Id:       node.ID,
		Lat:      node.Lat,
		Long:     node.Long,
		Tags:     tagsAsArray(node.Tags),
		Action:   int32(node.Action),
		Metadata: metadataToPbf(node.Metadata),
	}
	return proto.Marshal(pbfNode)
}

func UnmarshalNode(data []byte) (*element.Node, error) {
	pbfNode := &Node{}
	if err := proto.Unmarshal(data, pbfNode); err != nil {
		return nil, err
	}

	node := &element.Node{Action: element.Action(pbfNode.Action)}
	node.ID = pbfNode.Id
	node.Lat = pbfNode.Lat
	node.Long = pbfNode.Long
	node.Tags = tagsFromArray(pbfNode.Tags)
	node.Metadata = metadataFromPbf(pbfNode.Metadata)
	return node, nil
}

func deltaPack(data []int64) []int64 {
	packed := make([]int64, len(data))
	var last int64
	for i, v := range data {
		packed[i] = v - last
		last = v
	}
	return packed
}

func deltaUnpack(data []int64) {
	for i := 1; i < len(data); i++ {
		data[i] = data[i] + data[i-1]
	}
}

func MarshalWay(way *element.Way) ([]byte, error) {
	pbfWay := &Way{
		Id:       way.ID,
		Refs:     deltaPack(way.Refs),
		Tags:     tagsAsArray(way.Tags),
		Action:   int32(way.Action),
		Metadata: metadataToPbf(way.Metadata),
	}
	return proto.Marshal(pbfWay)
}

func UnmarshalWay(data []byte) (*element.Way, error) {
	pbfWay := &Way{}
	if err := proto.Unmarshal(data, pbfWay); err != nil {
		return nil, err
	}

	way := &element.Way{Action: element.Action(pbfWay.Action)}
	way.ID = pbfWay.Id
	deltaUnpack(pbfWay.Refs)
	way.Refs = pbfWay.Refs
	way.Tags = tagsFromArray(pbfWay.Tags)
	way.Metadata = metadataFromPbf(pbfWay.Metadata)
	return way, nil
}

func MarshalRelation(relation *element.Relation) ([]byte, error) {
	pbfRelation := &Relation{
		Id:       relation.ID,
		Tags:     tagsAsArray(relation.Tags),
		Action:   int32(relation.Action),
		Metadata: metadataToPbf(relation.Metadata),
	}
	pbfRelation.MemberIds = make([]int64, len(relation.Members))
	pbfRelation.MemberTypes = make([]int32, len(relation.Members))
	pbfRelation.MemberRoles = make([]string, len(relation.Members))
	for i, m := range relation.Members {
		pbfRelation.MemberIds[i] = m.ID
		pbfRelation.MemberTypes[i] = int32(m.Type)
		pbfRelation.MemberRoles[i] = m.Role
	}
	return proto.Marshal(pbfRelation)
}

func UnmarshalRelation(data []byte) (*element.Relation, error) {
	pbfRelation := &Relation{}
	if err := proto.Unmarshal(data, pbfRelation); err != nil {
		return nil, err
	}

	relation := &element.Relation{Action: element.Action(pbfRelation.Action)}
	relation.ID = pbfRelation.Id
	if len(pbfRelation.MemberIds) > 0 {
		relation.Members = make([]osm.Member, len(pbfRelation.MemberIds))
	}
	for i := range pbfRelation.MemberIds {
		relation.Members[i].ID = pbfRelation.MemberIds[i]
		relation.Members[i].Type = osm.MemberType(pbfRelation.MemberTypes[i])
		relation.Members[i].Role = pbfRelation.MemberRoles[i]
	}
	relation.Tags = tagsFromArray(pbfRelation.Tags)
	relation.Metadata = metadataFromPbf(pbfRelation.Metadata)
	return relation, nil
}

func MarshalRevision(rev *Revision) ([]byte, error) {
	return proto.Marshal(rev)
}

func UnmarshalRevision(data []byte) (*Revision, error) {
	rev := &Revision{}
	if err := proto.Unmarshal(data, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

func metadataToPbf(m *osm.Metadata) *Metadata {
	if m == nil {
		return nil
	}
	pbfMetadata := &Metadata{
		Version:   m.Version,
		UserId:    m.UserID,
		UserName:  m.UserName,
		Changeset: m.Changeset,
	}
	if !m.Timestamp.IsZero() {
		pbfMetadata.Timestamp = m.Timestamp.Unix()
	}
	return pbfMetadata
}

func metadataFromPbf(m *Metadata) *osm.Metadata {
	if m == nil {
		return nil
	}
	metadata := &osm.Metadata{
		Version:   m.Version,
		UserID:    m.UserId,
		UserName:  m.UserName,
		Changeset: m.Changeset,
	}
	if m.Timestamp != 0 {
		metadata.Timestamp = time.Unix(m.Timestamp, 0).UTC()
	}
	return metadata
}
