package entity

import "github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"

// ResolvedObject описывает объект самомониторинга, найденный запросом ресурсов
type ResolvedObject struct {
	Identifier  string
	DisplayName string
	NodeName    valueobject.NodeName
}

// NewResolvedObject очищает имя узла при создании
func NewResolvedObject(identifier, displayName, rawNodeName string) ResolvedObject {
	return ResolvedObject{
		Identifier:  identifier,
		DisplayName: displayName,
		NodeName:    valueobject.NewNodeName(rawNodeName),
	}
}
