package description

type NormalizationService struct {
}

//Set not specified default values
func (normalizationService *NormalizationService) Normalize(collectionDescription *CollectionDescription) *CollectionDescription {
	normalizationService.NormalizeColumnNames(&collectionDescription.Attributes)
	normalizationService.NormalizeKey(collectionDescription)
	return collectionDescription
}

//physical column name defaults to the attribute name
func (normalizationService *NormalizationService) NormalizeColumnNames(attributes *[]Attribute) {
	for i, attribute := range *attributes {
		if attribute.ColumnName == "" {
			(*attributes)[i].ColumnName = attribute.Name
		}
	}
}

//promote a flagged attribute into the description key
func (normalizationService *NormalizationService) NormalizeKey(collectionDescription *CollectionDescription) {
	if collectionDescription.Key != "" {
		return
	}
	for _, attribute := range collectionDescription.Attributes {
		if attribute.PrimaryKey {
			collectionDescription.Key = attribute.Name
			return
		}
	}
}
