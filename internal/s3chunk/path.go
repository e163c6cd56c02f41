package s3chunk

// ObjectPath maps a chunk name to its object key. prefix is expected to be
// normalised already (see config.NormalizePrefix).
func ObjectPath(prefix, name string) string {
	return prefix + name
}

func (s *Storage) objectPath(name string) string {
	return ObjectPath(s.prefix, name)
}
