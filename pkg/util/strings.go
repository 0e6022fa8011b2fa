package util

import "sort"

// RemoveDuplicateStrings returns the non empty strings of the input once each, in first seen order
func RemoveDuplicateStrings(strings []string, ignoreList []string) []string {
	presentStrings := make(map[string]bool)
	var list []string

	for _, ignoreString := range ignoreList {
		presentStrings[ignoreString] = true
	}

	for _, item := range strings {
		if _, value := presentStrings[item]; !value && item != "" {
			presentStrings[item] = true
			list = append(list, item)
		}
	}
	return list
}

func SortedUniqueStrings(strings []string) []string {
	list := RemoveDuplicateStrings(strings, nil)
	sort.Strings(list)

	return list
}

func TrimString(s string, length int) string {
	if len(s) <= length {
		return s
	}

	return s[:length]
}
