package description

import (
	"fmt"

	"tether/utils"
)

type ValidationError struct {
	Message string
}

func (err *ValidationError) Error() string {
	return err.Message
}

type CollectionValidationService struct {
}

func (validationService *CollectionValidationService) Validate(collectionDescription *CollectionDescription) (bool, error) {
	if ok, err := validationService.checkAttributesDoNotContainDuplicates(collectionDescription.Attributes); !ok {
		return false, err
	}
	if ok, err := validationService.checkSinglePrimaryKey(collectionDescription.Attributes); !ok {
		return false, err
	}
	if ok, err := validationService.checkKeyIsKnownAttribute(collectionDescription); !ok {
		return false, err
	}
	if ok, err := validationService.checkAssociationsCarryForeignKeyColumn(collectionDescription.Attributes); !ok {
		return false, err
	}
	return true, nil
}

//check if the collection contains attributes with duplicated names
func (validationService *CollectionValidationService) checkAttributesDoNotContainDuplicates(attributes []Attribute) (bool, error) {
	attributeNames := make([]string, 0)
	for _, attribute := range attributes {
		if !utils.Contains(attributeNames, attribute.Name) {
			attributeNames = append(attributeNames, attribute.Name)
		} else {
			return false, &ValidationError{fmt.Sprintf("Collection contains duplicated attribute '%s'", attribute.Name)}
		}
	}
	return true, nil
}

//more than one attribute flagged as primary key is a registration-time error,
//not an iteration-order lottery
func (validationService *CollectionValidationService) checkSinglePrimaryKey(attributes []Attribute) (bool, error) {
	keyNames := make([]string, 0)
	for _, attribute := range attributes {
		if attribute.PrimaryKey {
			keyNames = append(keyNames, attribute.Name)
		}
	}
	if len(keyNames) > 1 {
		return false, &ValidationError{fmt.Sprintf("Collection declares more than one primary key: %v", keyNames)}
	}
	return true, nil
}

func (validationService *CollectionValidationService) checkKeyIsKnownAttribute(collectionDescription *CollectionDescription) (bool, error) {
	if collectionDescription.Key == "" {
		return true, nil
	}
	if collectionDescription.FindAttribute(collectionDescription.Key) == nil {
		return false, &ValidationError{fmt.Sprintf("Collection key '%s' does not match any attribute", collectionDescription.Key)}
	}
	return true, nil
}

func (validationService *CollectionValidationService) checkAssociationsCarryForeignKeyColumn(attributes []Attribute) (bool, error) {
	for _, attribute := range attributes {
		if attribute.IsAssociation() && attribute.On == "" {
			return false, &ValidationError{fmt.Sprintf("Association attribute '%s' has no 'on' column", attribute.Name)}
		}
	}
	return true, nil
}
