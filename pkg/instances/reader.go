package instances

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// GroupType is the instance type treated as a group when the document does
// not say otherwise.
const GroupType = "IfcGroup"

type fileDocument struct {
	Instances []fileInstance `yaml:"instances"`
}

type fileInstance struct {
	GUID         string                    `yaml:"guid"`
	Name         string                    `yaml:"name"`
	Type         string                    `yaml:"type"`
	Group        *bool                     `yaml:"group"`
	PropertySets map[string]map[string]any `yaml:"property_sets"`
	Members      []string                  `yaml:"members"`
}

func (fi fileInstance) isGroup() bool {
	if fi.Group != nil {
		return *fi.Group
	}
	return strings.EqualFold(fi.Type, GroupType) || len(fi.Members) > 0
}

// FileReader reads the YAML (or JSON) exchange format:
//
//	instances:
//	  - guid: 2O2Fr$t4X7Zf8NOew3FLOH
//	    name: Wand 1
//	    type: IfcWall
//	    property_sets:
//	      Allgemeine Eigenschaften:
//	        bauteilKlassifikation: "1.1"
//	  - guid: 0Kp9dQe1n5Fv2Ssbw3FLOk
//	    type: IfcGroup
//	    members: [2O2Fr$t4X7Zf8NOew3FLOH]
type FileReader struct {
	logger logrus.FieldLogger
}

// NewFileReader creates a reader. A nil logger uses the logrus standard logger.
func NewFileReader(logger logrus.FieldLogger) *FileReader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileReader{logger: logger}
}

// Read implements Reader.
func (r *FileReader) Read(ctx context.Context, path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer fh.Close()

	f, err := r.Decode(ctx, path, fh)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// Decode parses a model document; path only names the result.
func (r *FileReader) Decode(ctx context.Context, path string, in io.Reader) (*File, error) {
	var doc fileDocument
	if err := yaml.NewDecoder(in).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid model document: %w", err)
	}

	f := NewFile(path)
	for i, fi := range doc.Instances {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if fi.GUID == "" {
			return nil, fmt.Errorf("instance %d has no guid", i)
		}
		f.Add(NewElement(fi.GUID, fi.Name, fi.Type, fi.isGroup(), fi.PropertySets))
	}

	for _, fi := range doc.Instances {
		if len(fi.Members) == 0 {
			continue
		}
		group, _ := f.Lookup(fi.GUID)
		for _, guid := range fi.Members {
			member, ok := f.Lookup(guid)
			if !ok {
				r.logger.WithFields(logrus.Fields{"group": fi.GUID, "member": guid}).
					Warn("group member not found in file")
				continue
			}
			if err := f.Assign(group, member); err != nil {
				if !errors.Is(err, ErrNotGroup) {
					return nil, err
				}
				r.logger.WithFields(logrus.Fields{"holder": fi.GUID, "member": guid}).
					Warn("members listed on an instance that is not a group")
				f.Misplace(group, member)
			}
		}
	}

	r.logger.WithFields(logrus.Fields{"file": f.Name(), "instances": f.Len()}).Debug("model file read")
	return f, nil
}
