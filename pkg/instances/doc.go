// Package instances is the model reader used by the check scheduler.
//
// A model file is read into a File: a flat list of Instance values plus
// group assignments. An Instance exposes its GUID, type tag and its property
// set values; the checks never look at the file format itself.
//
//	reader := instances.NewFileReader(logger)
//	f, err := reader.Read(ctx, "building.yaml")
//	for _, group := range f.Groups() {
//		fmt.Println(group.Name(), len(f.Members(group)))
//	}
package instances
